package auditlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Tree writes an indented text outline of the crawl hierarchy: root
// category, subcategories, collections and hubs, and the poems reached
// under each. Purely diagnostic, enabled by flag.
type Tree struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewTree opens the tree log, or returns a nil Tree when disabled.
// A nil Tree accepts Add and Close as no-ops.
func NewTree(dir string, enabled bool) (*Tree, error) {
	if !enabled {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tree log dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "crawl_tree.log"))
	if err != nil {
		return nil, fmt.Errorf("create tree log: %w", err)
	}
	return &Tree{file: f, w: bufio.NewWriter(f)}, nil
}

// Add records one node at the given depth.
func (t *Tree) Add(depth int, label, title string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s[%s] %s\n", strings.Repeat("  ", depth), label, title)
}

func (t *Tree) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Flush(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
