// Package answer turns retrieval results into a user-facing response.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/askdocs/internal/retrieval"
)

// Generator produces an answer from retrieved context. The extractive
// implementation quotes the best chunks directly; an LLM-backed generator
// can slot in behind the same interface.
type Generator interface {
	Generate(ctx context.Context, query string, results []retrieval.Result) (*Answer, error)
}

// Answer is the final response with its supporting sources.
type Answer struct {
	Text     string
	Sources  []Source
	TopScore float64
}

// Source attributes part of the answer to a document.
type Source struct {
	Title string
	URL   string
	Score float64
}

// Extractive builds answers by quoting the retrieved chunks. No model, no
// network: the retrieval ranking does the work.
type Extractive struct {
	// MaxPassages caps how many chunks are quoted.
	MaxPassages int
}

var _ Generator = (*Extractive)(nil)

// NewExtractive creates an extractive generator quoting up to maxPassages
// chunks.
func NewExtractive(maxPassages int) *Extractive {
	if maxPassages <= 0 {
		maxPassages = 3
	}
	return &Extractive{MaxPassages: maxPassages}
}

// Generate formats the top results into a readable answer. Empty results
// produce a "nothing found" answer rather than an error.
func (g *Extractive) Generate(ctx context.Context, query string, results []retrieval.Result) (*Answer, error) {
	if len(results) == 0 {
		return &Answer{
			Text: "No matching documentation found. Try rephrasing the question, or run 'askdocs sync' if the corpus is empty.",
		}, nil
	}

	n := g.MaxPassages
	if n > len(results) {
		n = len(results)
	}

	var b strings.Builder
	seen := make(map[string]bool)
	var sources []Source

	for i, r := range results[:n] {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(r.Text))

		// One source line per document, best score first
		key := r.DocumentID
		if !seen[key] {
			seen[key] = true
			sources = append(sources, Source{
				Title: r.Title,
				URL:   r.URL,
				Score: r.Score,
			})
		}
	}

	return &Answer{
		Text:     b.String(),
		Sources:  sources,
		TopScore: results[0].Score,
	}, nil
}

// Format renders an answer for terminal output.
func Format(a *Answer) string {
	var b strings.Builder
	b.WriteString(a.Text)

	if len(a.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, s := range a.Sources {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			if s.URL != "" {
				fmt.Fprintf(&b, "  - %s (%.2f) %s\n", title, s.Score, s.URL)
			} else {
				fmt.Fprintf(&b, "  - %s (%.2f)\n", title, s.Score)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
