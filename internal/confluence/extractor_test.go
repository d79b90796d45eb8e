package confluence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText_Paragraphs(t *testing.T) {
	text := ExtractText("<p>First paragraph.</p><p>Second paragraph.</p>")
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", text)
}

func TestExtractText_InlineMarkupFlattened(t *testing.T) {
	text := ExtractText("<p>Use <strong>bold</strong> and <em>italics</em> and <a href=\"x\">links</a>.</p>")
	assert.Equal(t, "Use bold and italics and links.", text)
}

func TestExtractText_SkipsScriptsAndStyles(t *testing.T) {
	text := ExtractText("<p>Visible</p><script>alert('no')</script><style>.x{color:red}</style>")
	assert.Equal(t, "Visible", text)
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color")
}

func TestExtractText_HeadingsAndLists(t *testing.T) {
	text := ExtractText("<h1>Title</h1><ul><li>one</li><li>two</li></ul>")
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "one")
	assert.Contains(t, text, "two")
	// Each list item lands on its own line
	lines := strings.Split(text, "\n")
	assert.GreaterOrEqual(t, len(lines), 3)
}

func TestExtractText_MalformedHTMLRecovers(t *testing.T) {
	text := ExtractText("<p>unclosed <div>nested <b>bold")
	assert.Contains(t, text, "unclosed")
	assert.Contains(t, text, "nested")
	assert.Contains(t, text, "bold")
}

func TestExtractText_Empty(t *testing.T) {
	assert.Equal(t, "", ExtractText(""))
	assert.Equal(t, "", ExtractText("<p>   </p>"))
}

func TestExtractText_CollapsesBlankRuns(t *testing.T) {
	text := ExtractText("<div><div><p>a</p></div></div><div><p>b</p></div>")
	assert.Equal(t, "a\n\nb", text)
}
