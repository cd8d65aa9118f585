package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"poemharvest/internal/gateway"
	"poemharvest/internal/types"
)

// namespaceCategory is the MediaWiki category namespace, used for the
// fuzzy root-category search fallback.
const namespaceCategory = 14

// discover seeds the frontier from the configured root category: the
// root's direct member pages, then each non-empty subcategory's member
// pages. Emptiness is pre-checked in batches so empty author categories
// cost one batched call instead of one listing each.
func (e *Engine) discover(ctx context.Context) error {
	root, err := e.resolveRootCategory(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("root category resolved", "category", root)
	e.tree.Add(0, "category", root)

	limit := e.cfg.Crawl.Limit
	seeded := 0

	seedMembers := func(category string, depth int) error {
		members, err := e.gw.CategoryMembers(ctx, category)
		if err != nil {
			return fmt.Errorf("list members of %s: %w", category, err)
		}
		for _, m := range members {
			if limit > 0 && seeded >= limit {
				return nil
			}
			item := types.WorkItem{Page: m, GroupCategory: category}
			switch err := e.frontier.SubmitIfNew(item); {
			case err == nil:
				seeded++
				e.metrics.PagesSubmitted.Add(1)
				e.tree.Add(depth, "page", m.Title)
			case errors.Is(err, types.ErrDuplicate):
				e.metrics.PagesDuplicate.Add(1)
			default:
				return err
			}
		}
		return nil
	}

	if err := seedMembers(root, 1); err != nil {
		return err
	}

	subcats, err := e.gw.Subcategories(ctx, root)
	if err != nil {
		return fmt.Errorf("list subcategories: %w", err)
	}
	e.logger.Info("subcategories found", "count", len(subcats))

	nonEmpty, err := e.filterEmptyCategories(ctx, subcats)
	if err != nil {
		return err
	}

	for _, sub := range nonEmpty {
		if limit > 0 && seeded >= limit {
			break
		}
		e.tree.Add(1, "category", sub.Title)
		if err := seedMembers(sub.Title, 2); err != nil {
			return err
		}
	}

	e.logger.Info("discovery complete", "seeded", seeded,
		"subcategories", len(subcats), "non_empty", len(nonEmpty))
	return nil
}

// resolveRootCategory turns the configured category name into an
// existing category title, falling back to full-text search in the
// category namespace when the literal title does not exist.
func (e *Engine) resolveRootCategory(ctx context.Context) (string, error) {
	title := e.cfg.Crawl.Category
	prefix := gateway.CategoryPrefix(e.cfg.Crawl.Lang) + ":"
	if len(title) < len(prefix) || !strings.EqualFold(title[:len(prefix)], prefix) {
		title = prefix + title
	}

	res, err := e.gw.ResolveTitles(ctx, []string{title})
	if err != nil {
		return "", fmt.Errorf("resolve root category: %w", err)
	}
	for _, p := range res.Pages {
		if !p.Missing {
			return p.Title, nil
		}
	}

	e.logger.Warn("root category not found, searching", "category", title)
	found, err := e.gw.SearchPage(ctx, e.cfg.Crawl.Category, namespaceCategory)
	if err != nil {
		return "", fmt.Errorf("search root category: %w", err)
	}
	if found == "" {
		return "", types.ErrRootNotFound
	}
	return found, nil
}

// filterEmptyCategories keeps the categories that hold at least one
// page or subcategory, checking counts in API-sized batches.
func (e *Engine) filterEmptyCategories(ctx context.Context, cats []types.PageRef) ([]types.PageRef, error) {
	byTitle := make(map[string]types.PageRef, len(cats))
	titles := make([]string, 0, len(cats))
	for _, c := range cats {
		byTitle[c.Title] = c
		titles = append(titles, c.Title)
	}

	var nonEmpty []types.PageRef
	batch := e.gw.BatchSize()
	for start := 0; start < len(titles); start += batch {
		end := start + batch
		if end > len(titles) {
			end = len(titles)
		}
		counts, err := e.gw.CategoryInfo(ctx, titles[start:end])
		if err != nil {
			return nil, fmt.Errorf("category info batch: %w", err)
		}
		for _, title := range titles[start:end] {
			if c, ok := counts[title]; ok && c.Pages+c.Subcats > 0 {
				nonEmpty = append(nonEmpty, byTitle[title])
			}
		}
	}
	return nonEmpty, nil
}
