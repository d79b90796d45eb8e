package confluence

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags start a new line in the extracted text so paragraph structure
// survives for the chunker's separator heuristics.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "blockquote": true, "pre": true,
}

// skipTags are dropped entirely, content included.
var skipTags = map[string]bool{
	"script": true, "style": true,
}

// ExtractText converts Confluence storage-format HTML into plain text.
// Block elements become paragraph breaks; scripts, styles, and markup are
// dropped. Parsing never fails on malformed input: the tokenizer recovers
// the way browsers do.
func ExtractText(storageHTML string) string {
	doc, err := html.Parse(strings.NewReader(storageHTML))
	if err != nil {
		// html.Parse only errors on reader failure; a string reader cannot
		return strings.TrimSpace(storageHTML)
	}

	var b strings.Builder
	walk(doc, &b)

	return tidyWhitespace(b.String())
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if skipTags[n.Data] {
			return
		}
		if blockTags[n.Data] {
			b.WriteString("\n\n")
		}
	case html.TextNode:
		b.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteString("\n\n")
	}
}

// tidyWhitespace collapses runs of blank lines to one paragraph break and
// trims each line.
func tidyWhitespace(s string) string {
	lines := strings.Split(s, "\n")

	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}

	// Drop a trailing blank line
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}
