package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"poemharvest/internal/classify"
	"poemharvest/internal/extract"
	"poemharvest/internal/gateway"
	"poemharvest/internal/types"
)

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	logger := e.logger.With("worker", id)

	for {
		item, ok := e.frontier.Drain(ctx)
		if !ok {
			return
		}

		e.metrics.ActiveWorkers.Add(1)
		if err := e.handle(ctx, item, logger); err != nil {
			logger.Error("page failed", "title", item.Page.Title, "error", err)
		}
		e.metrics.ActiveWorkers.Add(-1)
		e.frontier.Done()
	}
}

// handle processes one work item end to end: resolve, fetch, classify,
// then either extract the poem or expand the page into new work items.
// Errors abort only this item; the crawl keeps going.
func (e *Engine) handle(ctx context.Context, item types.WorkItem, logger *slog.Logger) error {
	pageID := item.Page.ID
	if pageID == 0 {
		var err error
		pageID, err = e.resolveID(ctx, item.Page.Title)
		if err != nil {
			return err
		}
		if pageID == 0 {
			e.metrics.PagesMissing.Add(1)
			logger.Debug("page missing", "title", item.Page.Title)
			return nil
		}
	}

	data, err := e.gw.PageData(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page data: %w", err)
	}
	if data == nil {
		e.metrics.PagesMissing.Add(1)
		return nil
	}
	e.metrics.PagesFetched.Add(1)

	// Wikitext redirects put the real page back on the frontier with
	// the same crawl context; the redirect page itself is done. If the
	// target was already scheduled or processed, both ends are settled.
	if target := classify.RedirectTarget(data.Wikitext); target != "" {
		e.metrics.RedirectsFollowed.Add(1)
		e.frontier.MarkProcessed(data.ID)
		redirected := item
		redirected.Page = types.PageRef{Title: target}
		if err := e.frontier.SubmitIfNew(redirected); errors.Is(err, types.ErrDuplicate) {
			e.metrics.PagesDuplicate.Add(1)
		}
		return nil
	}

	rendered, err := e.gw.RenderedHTML(ctx, data.ID)
	if err != nil {
		return fmt.Errorf("fetch rendered html: %w", err)
	}
	page, err := classify.ParsePage(data, rendered)
	if err != nil {
		return fmt.Errorf("parse rendered html: %w", err)
	}

	result := e.classifier.Classify(page)
	e.metrics.RecordClassification(result.Type.String())
	logger.Debug("page classified",
		"title", data.Title, "type", result.Type.String(), "reason", result.Reason.String())

	switch result.Type {
	case types.TypePoem:
		return e.handlePoem(ctx, page, item, logger)
	case types.TypePoeticCollection:
		e.tree.Add(2, "collection", data.Title)
		n, err := e.expandCollection(ctx, page, item)
		e.auditRecord(data, result, item, n, logger)
		return err
	case types.TypeMultiVersionHub:
		e.tree.Add(2, "hub", data.Title)
		n, err := e.expandHub(page, item)
		e.auditRecord(data, result, item, n, logger)
		return err
	default:
		// Author pages, disambiguations and the rest end here; the
		// audit log keeps the reason.
		e.auditRecord(data, result, item, 0, logger)
		return nil
	}
}

func (e *Engine) auditRecord(data *types.PageData, result types.ClassifiedPage, item types.WorkItem, children int, logger *slog.Logger) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(data, result, item.ParentTitle, item.GroupCategory, children); err != nil {
		logger.Warn("audit record failed", "title", data.Title, "error", err)
	}
}

func (e *Engine) handlePoem(ctx context.Context, page *classify.Page, item types.WorkItem, logger *slog.Logger) error {
	if e.frontier.IsProcessed(page.Data.ID) {
		logger.Debug("poem already processed", "title", page.Data.Title)
		return nil
	}

	poem, err := e.extractor.Extract(page, item)
	if err != nil {
		if errors.Is(err, types.ErrNoPoemStructure) {
			e.metrics.ExtractFailures.Add(1)
			logger.Warn("no poem structure", "title", page.Data.Title)
			return nil
		}
		return fmt.Errorf("extract poem: %w", err)
	}
	e.metrics.PoemsExtracted.Add(1)

	if err := e.sink.Submit(ctx, poem); err != nil {
		return fmt.Errorf("submit poem: %w", err)
	}
	e.frontier.MarkProcessed(poem.PageID)
	e.metrics.PoemsPersisted.Add(1)
	return nil
}

// expandCollection resolves a collection page's children, builds the
// complete collection snapshot, then submits every member poem. The
// snapshot is finished before the first submission, so workers that
// pick up members never observe it mid-build. Returns the number of
// member poems discovered.
func (e *Engine) expandCollection(ctx context.Context, page *classify.Page, item types.WorkItem) (int, error) {
	children := e.classifier.CollectionChildren(page)
	if len(children) == 0 {
		return 0, nil
	}

	var titles []string
	for _, c := range children {
		if c.Type == types.TypePoem {
			titles = append(titles, c.Title)
		}
	}
	stubs, redirects, err := e.resolveAll(ctx, titles)
	if err != nil {
		return 0, fmt.Errorf("resolve collection children: %w", err)
	}

	var author string
	if len(page.Doc.Nodes) > 0 {
		author = extract.Metadata(page.Doc.Nodes[0], page.Data.Wikitext).Author
	}

	coll := &types.Collection{
		ID:     page.Data.ID,
		Title:  page.Data.Title,
		URL:    page.Data.URL,
		Author: author,
	}

	type member struct {
		stub    gateway.PageStub
		section string
	}
	var members []member

	section := ""
	for _, child := range children {
		if child.Type == types.TypeSectionTitle {
			section = child.Title
			continue
		}
		final := child.Title
		if to, ok := redirects[final]; ok {
			final = to
		}
		stub, ok := stubs[final]
		if !ok || stub.Missing {
			continue
		}
		coll.AddPoem(section, types.PoemInfo{Title: stub.Title, ID: stub.ID, URL: stub.URL})
		members = append(members, member{stub: stub, section: section})
	}

	for i, m := range members {
		child := types.WorkItem{
			Page:          types.PageRef{ID: m.stub.ID, Title: m.stub.Title},
			ParentTitle:   page.Data.Title,
			GroupCategory: item.GroupCategory,
			Hub:           item.Hub,
			Collection: &types.CollectionContext{
				Collection:   coll,
				Order:        i,
				SectionTitle: m.section,
				IsFirst:      i == 0,
			},
		}
		switch err := e.frontier.SubmitIfNew(child); {
		case err == nil:
			e.metrics.PagesSubmitted.Add(1)
			e.tree.Add(3, "poem", m.stub.Title)
		case errors.Is(err, types.ErrDuplicate):
			e.metrics.PagesDuplicate.Add(1)
		default:
			return len(members), err
		}
	}
	return len(members), nil
}

// expandHub submits each version link of a multi-version hub with the
// hub's identity attached, so all versions group under one hub_page_id.
// Returns the number of version links discovered.
func (e *Engine) expandHub(page *classify.Page, item types.WorkItem) (int, error) {
	hub := &types.HubContext{Title: page.Data.Title, ID: page.Data.ID}

	children := e.classifier.HubChildren(page)
	for _, child := range children {
		work := types.WorkItem{
			Page:          types.PageRef{Title: child.Title},
			ParentTitle:   page.Data.Title,
			GroupCategory: item.GroupCategory,
			Hub:           hub,
			Collection:    item.Collection,
		}
		switch err := e.frontier.SubmitIfNew(work); {
		case err == nil:
			e.metrics.PagesSubmitted.Add(1)
			e.tree.Add(3, "version", child.Title)
		case errors.Is(err, types.ErrDuplicate):
			e.metrics.PagesDuplicate.Add(1)
		default:
			return len(children), err
		}
	}
	return len(children), nil
}

// resolveID maps one title to its page ID, following redirects.
// Returns 0 for missing pages.
func (e *Engine) resolveID(ctx context.Context, title string) (int64, error) {
	res, err := e.gw.ResolveTitles(ctx, []string{title})
	if err != nil {
		return 0, fmt.Errorf("resolve title: %w", err)
	}
	for _, p := range res.Pages {
		if !p.Missing {
			return p.ID, nil
		}
	}
	return 0, nil
}

// resolveAll batch-resolves titles, returning stubs keyed by final
// title plus the redirect mapping from submitted to final titles.
func (e *Engine) resolveAll(ctx context.Context, titles []string) (map[string]gateway.PageStub, map[string]string, error) {
	stubs := make(map[string]gateway.PageStub, len(titles))
	redirects := make(map[string]string)

	batch := e.gw.BatchSize()
	for start := 0; start < len(titles); start += batch {
		end := start + batch
		if end > len(titles) {
			end = len(titles)
		}
		res, err := e.gw.ResolveTitles(ctx, titles[start:end])
		if err != nil {
			return nil, nil, err
		}
		for _, p := range res.Pages {
			stubs[p.Title] = p
		}
		for _, r := range res.Redirects {
			redirects[r.From] = r.To
		}
	}
	return stubs, redirects, nil
}
