package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poemharvest/internal/types"
)

func TestCollectionChildrenOrderWithSections(t *testing.T) {
	c := newTestClassifier(t)
	html := `<div id="mw-content-text">
		<h2>Livre premier</h2>
		<ul>
			<li><a href="/wiki/Aurore">Aurore</a></li>
			<li><a href="/wiki/Le_Firmament">Le Firmament</a></li>
		</ul>
		<h2>Livre second</h2>
		<ul>
			<li><a href="/wiki/Crépuscule">Crépuscule</a></li>
		</ul>
	</div>`
	p := mustParsePage(t, &types.PageData{Title: "Les Contemplations"}, html)

	children := c.CollectionChildren(p)
	require.Len(t, children, 5)

	assert.Equal(t, types.ChildRef{Title: "Livre premier", Type: types.TypeSectionTitle}, children[0])
	assert.Equal(t, types.ChildRef{Title: "Aurore", Type: types.TypePoem}, children[1])
	assert.Equal(t, types.ChildRef{Title: "Le Firmament", Type: types.TypePoem}, children[2])
	assert.Equal(t, types.ChildRef{Title: "Livre second", Type: types.TypeSectionTitle}, children[3])
	assert.Equal(t, types.ChildRef{Title: "Crépuscule", Type: types.TypePoem}, children[4])
}

func TestCollectionChildrenSummaryBlockWins(t *testing.T) {
	c := newTestClassifier(t)
	// Links outside the summary block must be ignored when one exists.
	html := `<div id="mw-content-text">
		<div class="ws-summary"><ul><li><a href="/wiki/Dedans">Dedans</a></li></ul></div>
		<ul><li><a href="/wiki/Dehors">Dehors</a></li></ul>
	</div>`
	p := mustParsePage(t, &types.PageData{Title: "Recueil"}, html)

	children := c.CollectionChildren(p)
	require.Len(t, children, 1)
	assert.Equal(t, "Dedans", children[0].Title)
}

func TestCollectionChildrenFiltersInvalidLinks(t *testing.T) {
	c := newTestClassifier(t)
	html := `<div id="mw-content-text"><ul>
		<li><a href="/wiki/Bon_Poème">Bon Poème</a></li>
		<li><a href="/wiki/Catégorie:Poèmes">catégorie</a></li>
		<li><a href="/wiki/Auteur:Hugo">auteur</a></li>
		<li><a href="/w/index.php?title=Absent&amp;action=edit&amp;redlink=1" class="new">rouge</a></li>
		<li><a href="/wiki/Recueil">Recueil</a></li>
		<li><a href="/wiki/Bon_Poème">Bon Poème encore</a></li>
		<li><a href="https://example.com/externe">externe</a></li>
	</ul></div>`
	p := mustParsePage(t, &types.PageData{Title: "Recueil"}, html)

	children := c.CollectionChildren(p)
	require.Len(t, children, 1)
	assert.Equal(t, "Bon Poème", children[0].Title)
}

func TestCollectionChildrenSkipsOverlongSectionTitles(t *testing.T) {
	c := newTestClassifier(t)
	long := make([]byte, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'x')
	}
	html := `<div id="mw-content-text">
		<h2>` + string(long) + `</h2>
		<ul><li><a href="/wiki/Poème">Poème</a></li></ul>
	</div>`
	p := mustParsePage(t, &types.PageData{Title: "Recueil"}, html)

	children := c.CollectionChildren(p)
	require.Len(t, children, 1)
	assert.Equal(t, types.TypePoem, children[0].Type)
}

func TestHubChildrenMatchesTitleContainment(t *testing.T) {
	c := newTestClassifier(t)
	html := `<div id="mw-content-text"><ul>
		<li><a href="/wiki/Le_Lac_(1820)">Le Lac (1820)</a></li>
		<li><a href="/wiki/Le_Lac_(édition_1849)">Le Lac (édition 1849)</a></li>
		<li><a href="/wiki/Autre_Chose">Autre Chose</a></li>
	</ul></div>`
	p := mustParsePage(t, &types.PageData{Title: "Le Lac (Lamartine)"}, html)

	children := c.HubChildren(p)
	require.Len(t, children, 2)
	assert.Equal(t, "Le Lac (1820)", children[0].Title)
	assert.Equal(t, "Le Lac (édition 1849)", children[1].Title)
}

func TestHubChildrenMatchesPathDescendants(t *testing.T) {
	c := newTestClassifier(t)
	html := `<div id="mw-content-text"><ul>
		<li><a href="/wiki/Odes/Version_manuscrite">Version manuscrite</a></li>
		<li><a href="/wiki/Sans_Rapport">Sans Rapport</a></li>
	</ul></div>`
	p := mustParsePage(t, &types.PageData{Title: "Odes"}, html)

	children := c.HubChildren(p)
	require.Len(t, children, 1)
	assert.Equal(t, "Odes/Version manuscrite", children[0].Title)
}
