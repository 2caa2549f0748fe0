// Package markdown renders assistant replies for the terminal.
package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/pkg/errors"
)

// Renderer handles markdown rendering with syntax highlighting.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
	// Rendered messages, keyed by message id.
	cache map[string]string

	// State of the reply being streamed.
	partialLineOffset int
	partialCache      string
}

// NewRenderer creates a new markdown renderer.
func NewRenderer(width int) (*Renderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithStyles(customStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating glamour renderer")
	}
	return &Renderer{
		glamour: gr,
		width:   width,
		cache:   map[string]string{},
	}, nil
}

// Render a complete message. Renders are cached by id; an empty id disables the cache.
func (r *Renderer) Render(id, content string) string {
	if rendered, ok := r.cache[id]; ok && id != "" {
		return rendered
	}
	rendered := r.render(content)
	if id != "" {
		r.cache[id] = rendered
	}
	return rendered
}

// RenderPartial renders a reply that is still being received. Complete lines
// are rendered as markdown, the trailing incomplete line as plain text.
func (r *Renderer) RenderPartial(content string) string {
	if content == "" {
		r.ResetPartial()
		return ""
	}
	lines := strings.Split(content, "\n")
	completeLinesCount := len(lines) - 1
	if completeLinesCount < r.partialLineOffset {
		r.ResetPartial()
	}
	if completeLinesCount > r.partialLineOffset {
		completeContent := strings.Join(lines[:completeLinesCount], "\n")
		// Close an open code fence so the rendered prefix is well formed.
		if strings.Count(completeContent, "```")%2 == 1 {
			completeContent += "\n```"
		}
		r.partialCache = strings.TrimSuffix(r.render(completeContent), "\n")
		r.partialLineOffset = completeLinesCount
	}

	latestLine := lines[len(lines)-1]
	switch {
	case latestLine == "":
		return r.partialCache
	case r.partialCache == "":
		return latestLine
	default:
		return r.partialCache + "\n" + latestLine
	}
}

// ResetPartial forgets the reply being streamed.
func (r *Renderer) ResetPartial() {
	r.partialLineOffset = 0
	r.partialCache = ""
}

// SetWidth updates the renderer width, recreating internals if needed.
func (r *Renderer) SetWidth(width int) error {
	if r.width == width {
		return nil
	}
	newRenderer, err := NewRenderer(width)
	if err != nil {
		return err
	}
	*r = *newRenderer
	return nil
}

func (r *Renderer) render(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	rendered, err := r.glamour.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// customStyle returns a modified glamour style for cleaner output.
func customStyle() ansi.StyleConfig {
	style := styles.DraculaStyleConfig
	zero := uint(0)
	style.Document.Margin = &zero
	style.CodeBlock.Margin = &zero
	style.CodeBlock.Indent = &zero
	style.CodeBlock.Prefix = ""
	style.CodeBlock.BlockPrefix = ""

	style.Code.Margin = &zero
	style.Code.Indent = &zero
	style.Code.Prefix = ""
	style.Code.Suffix = ""

	style.Paragraph.BlockPrefix = ""
	style.Paragraph.BlockSuffix = ""

	return style
}
