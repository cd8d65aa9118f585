// Package auditlog records what the crawl decided and why: one CSV per
// notable classification outcome, so a corpus run can be reviewed
// without replaying it.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"poemharvest/internal/types"
)

// Audit writes classification outcomes to per-kind CSV files under the
// output directory.
type Audit struct {
	mu      sync.Mutex
	files   map[string]*os.File
	writers map[string]*csv.Writer
	dir     string
	logger  *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Audit, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &Audit{
		files:   make(map[string]*os.File),
		writers: make(map[string]*csv.Writer),
		dir:     dir,
		logger:  logger.With("component", "audit"),
	}, nil
}

// Record logs one classified page under its outcome file. Collections
// and hubs get their own files with the number of children discovered;
// everything skipped lands in others.csv with the reason that skipped
// it, so pruned branches can be told apart from missed content. The
// category column keeps the originating author category visible for
// pages reached through collection or hub expansion.
func (a *Audit) Record(page *types.PageData, result types.ClassifiedPage, parent, category string, children int) error {
	var kind string
	switch result.Type {
	case types.TypePoeticCollection:
		kind = "collections"
	case types.TypeMultiVersionHub:
		kind = "hubs"
	case types.TypePoem:
		return nil // poems are the output stream itself
	default:
		kind = "others"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := a.writer(kind)
	if err != nil {
		return err
	}
	row := []string{
		strconv.FormatInt(page.ID, 10),
		page.Title,
		result.Type.String(),
		result.Reason.String(),
		parent,
		category,
		strconv.Itoa(children),
		page.URL,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (a *Audit) writer(kind string) (*csv.Writer, error) {
	if w, ok := a.writers[kind]; ok {
		return w, nil
	}

	f, err := os.Create(filepath.Join(a.dir, kind+".csv"))
	if err != nil {
		return nil, fmt.Errorf("create audit file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"page_id", "title", "type", "reason", "parent", "category", "children", "url"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write audit header: %w", err)
	}

	a.files[kind] = f
	a.writers[kind] = w
	return w, nil
}

func (a *Audit) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for kind, w := range a.writers {
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := a.files[kind].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.writers = make(map[string]*csv.Writer)
	a.files = make(map[string]*os.File)
	return firstErr
}
