package section

import (
	"errors"
	"strings"
	"testing"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boroughPage = `<html><body>
<h1>Weekend Traffic Advisory</h1>
<h2 id="bronx">Bronx</h2>
<p>Bronx closures</p>
<h2 id="manhattan">Manhattan</h2>
<p>2025 NYC Pride March</p>
<h3 id="formation">Formation</h3>
<p>5th Avenue between 33rd Street and 25th Street</p>
<h2 id="brooklyn">Brooklyn</h2>
<p>Brooklyn closures</p>
</body></html>`

func TestExtract_BetweenAnchors(t *testing.T) {
	sec, err := Extract(boroughPage, "manhattan")
	require.NoError(t, err)

	assert.Equal(t, "h2", sec.Tag)
	assert.True(t, strings.HasPrefix(sec.Text, `<h2 id="manhattan">`))
	assert.True(t, strings.HasSuffix(sec.Text, "<p>5th Avenue between 33rd Street and 25th Street</p>"))
	assert.Contains(t, sec.Text, "<h3 id=\"formation\">", "lower-level headings stay inside the section")
	assert.NotContains(t, sec.Text, "Brooklyn")
	assert.NotContains(t, sec.Text, "Bronx")
	assert.Equal(t, strings.Index(boroughPage, `<h2 id="brooklyn">`), sec.End)
	assert.Equal(t, strings.TrimSpace(boroughPage[sec.Start:sec.End]), sec.Text)
}

func TestExtract_LastAnchorRunsToEnd(t *testing.T) {
	sec, err := Extract(boroughPage, "brooklyn")
	require.NoError(t, err)

	assert.Equal(t, len(boroughPage), sec.End)
	assert.True(t, strings.HasPrefix(sec.Text, `<h2 id="brooklyn">`))
	assert.True(t, strings.HasSuffix(sec.Text, "</html>"))
}

func TestExtract_NotFound(t *testing.T) {
	_, err := Extract(boroughPage, "queens")
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "queens", nf.Anchor)
	assert.True(t, errors.Is(err, models.ErrSectionNotFound))
	assert.Contains(t, err.Error(), `"queens"`)
}

func TestExtract_CaseInsensitive(t *testing.T) {
	doc := `<H2 CLASS="borough" ID='Manhattan'>Manhattan</H2><p>x</p><H2 id="queens">Q</H2>`
	sec, err := Extract(doc, "MANHATTAN")
	require.NoError(t, err)
	assert.Equal(t, `<H2 CLASS="borough" ID='Manhattan'>Manhattan</H2><p>x</p>`, sec.Text)
}

func TestExtract_FirstMatchWins(t *testing.T) {
	doc := `<h2 id="manhattan">first</h2><h2 id="manhattan">second</h2>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 id="manhattan">first</h2>`, sec.Text)
}

func TestExtract_SameLevelOnly(t *testing.T) {
	doc := `<h3 id="manhattan">M</h3><h2 id="other">O</h2><p>still here</p><h3>next</h3>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, "h3", sec.Tag)
	assert.Equal(t, `<h3 id="manhattan">M</h3><h2 id="other">O</h2><p>still here</p>`, sec.Text)
}

func TestExtract_IgnoresLookalikes(t *testing.T) {
	doc := `<header id="manhattan">nav</header>` +
		`<h2 data-id="manhattan">wrong attribute</h2>` +
		`<h2 id=manhattan>right</h2><hr><h2>end</h2>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 id=manhattan>right</h2><hr>`, sec.Text)
}

func TestExtract_TrimsWhitespace(t *testing.T) {
	doc := "\n\n<h2 id=\"manhattan\">M</h2>\n\n  \n<h2 id=\"x\">"
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 id="manhattan">M</h2>`, sec.Text)
}

func TestExtract_UnterminatedNextTag(t *testing.T) {
	doc := `<h2 id="manhattan">M</h2><p>body</p><h2 id="broken"`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, len(doc), sec.End)
}

func TestExtract_NonASCIIOffsetsPreserved(t *testing.T) {
	doc := `<p>İstanbul Straße</p><h2 id="manhattan">Ünïcode</h2><p>ok</p><h2 id="b">`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 id="manhattan">Ünïcode</h2><p>ok</p>`, sec.Text)
}

func TestAttrValue(t *testing.T) {
	tests := []struct {
		body  string
		want  string
		found bool
	}{
		{` id="a">`, "a", true},
		{` id='a'>`, "a", true},
		{` id=a>`, "a", true},
		{` class="x" id = "a" >`, "a", true},
		{` hidden id="a">`, "a", true},
		{` data-id="a">`, "", false},
		{` id="unterminated>`, "", false},
		{`>`, "", false},
	}
	for _, tt := range tests {
		got, found := attrValue(tt.body, "id")
		assert.Equal(t, tt.found, found, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestExtract_QuotedGreaterThanInAttribute(t *testing.T) {
	doc := `<h2 title="a > b" id="manhattan">M</h2><p>m1</p><h2 data-note='x>y' id="brooklyn">B</h2><p>b1</p>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 title="a > b" id="manhattan">M</h2><p>m1</p>`, sec.Text)

	sec, err = Extract(doc, "brooklyn")
	require.NoError(t, err)
	assert.Equal(t, `<h2 data-note='x>y' id="brooklyn">B</h2><p>b1</p>`, sec.Text)
}

func TestExtract_SkipsCommentedHeadings(t *testing.T) {
	doc := `<!-- <h2 id="manhattan">old</h2> --><h2 id="manhattan">M</h2><p>m1</p><!-- <h2 id="draft">D</h2> --><p>m2</p><h2 id="brooklyn">B</h2>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, `<h2 id="manhattan">M</h2><p>m1</p><!-- <h2 id="draft">D</h2> --><p>m2</p>`, sec.Text)

	_, err = Extract(`<!-- <h2 id="queens">Q</h2> -->`, "queens")
	assert.ErrorIs(t, err, models.ErrSectionNotFound)
}

func TestExtract_UnterminatedCommentEndsScan(t *testing.T) {
	doc := `<h2 id="manhattan">M</h2><p>m1</p><!-- <h2 id="brooklyn">B</h2>`
	sec, err := Extract(doc, "manhattan")
	require.NoError(t, err)
	assert.Equal(t, len(doc), sec.End)
}
