package auditlog

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuditRecordRoutesByOutcome(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir, discardLogger())
	require.NoError(t, err)

	coll := &types.PageData{ID: 100, Title: "Les Contemplations", URL: "https://fr.wikisource.org/wiki/Les_Contemplations"}
	require.NoError(t, a.Record(coll, types.ClassifiedPage{
		Type:   types.TypePoeticCollection,
		Reason: types.ReasonSummaryBlock,
	}, "Auteur:Victor Hugo", "Catégorie:Victor Hugo", 27))

	other := &types.PageData{ID: 7, Title: "Hugo (homonymie)"}
	require.NoError(t, a.Record(other, types.ClassifiedPage{
		Type:   types.TypeDisambiguation,
		Reason: types.ReasonDisambiguationTemplate,
	}, "", "Catégorie:Poèmes", 0))

	// Poems are the output corpus, not audit material.
	require.NoError(t, a.Record(&types.PageData{ID: 42, Title: "Aurore"}, types.ClassifiedPage{
		Type:   types.TypePoem,
		Reason: types.ReasonPoemBlocks,
	}, "Les Contemplations", "Catégorie:Victor Hugo", 0))

	require.NoError(t, a.Close())

	rows := readCSV(t, filepath.Join(dir, "collections.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"page_id", "title", "type", "reason", "parent", "category", "children", "url"}, rows[0])
	assert.Equal(t, "100", rows[1][0])
	assert.Equal(t, "Les Contemplations", rows[1][1])
	assert.Equal(t, "Auteur:Victor Hugo", rows[1][4])
	assert.Equal(t, "Catégorie:Victor Hugo", rows[1][5])
	assert.Equal(t, "27", rows[1][6])

	rows = readCSV(t, filepath.Join(dir, "others.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "Hugo (homonymie)", rows[1][1])
	assert.Equal(t, types.ReasonDisambiguationTemplate.String(), rows[1][3])

	_, err = os.Stat(filepath.Join(dir, "poems.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestTreeWritesIndentedOutline(t *testing.T) {
	dir := t.TempDir()
	tree, err := NewTree(dir, true)
	require.NoError(t, err)

	tree.Add(0, "category", "Catégorie:Poèmes")
	tree.Add(1, "author", "Victor Hugo")
	tree.Add(2, "collection", "Les Contemplations")
	tree.Add(3, "poem", "Aurore")
	require.NoError(t, tree.Close())

	data, err := os.ReadFile(filepath.Join(dir, "crawl_tree.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[category] Catégorie:Poèmes", lines[0])
	assert.Equal(t, "      [poem] Aurore", lines[3])
}

func TestTreeDisabledIsNoOp(t *testing.T) {
	tree, err := NewTree(t.TempDir(), false)
	require.NoError(t, err)
	require.Nil(t, tree)

	tree.Add(0, "category", "anything")
	assert.NoError(t, tree.Close())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
