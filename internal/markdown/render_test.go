package markdown

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r, err := NewRenderer(80)
	require.NoError(t, err)

	rendered := r.Render("m1", "**bold** text")
	require.Contains(t, ansi.Strip(rendered), "bold")
	require.Contains(t, ansi.Strip(rendered), "text")
	// Cached by id.
	require.Equal(t, rendered, r.Render("m1", "something else"))
	require.Contains(t, ansi.Strip(r.Render("", "other")), "other")
	require.Equal(t, "", r.Render("", "  "))
}

func TestRenderPartial(t *testing.T) {
	r, err := NewRenderer(80)
	require.NoError(t, err)

	require.Equal(t, "Hel", r.RenderPartial("Hel"))
	partial := r.RenderPartial("Hello\nwor")
	require.Contains(t, ansi.Strip(partial), "Hello")
	require.Contains(t, partial, "wor")

	partial = r.RenderPartial("```go\nfunc main() {\n")
	require.Contains(t, ansi.Strip(partial), "main()")

	require.Equal(t, "", r.RenderPartial(""))
	require.Equal(t, "new", r.RenderPartial("new"))
}

func TestSetWidth(t *testing.T) {
	r, err := NewRenderer(80)
	require.NoError(t, err)
	r.Render("m1", "hello")
	require.NoError(t, r.SetWidth(80))
	require.Len(t, r.cache, 1)
	require.NoError(t, r.SetWidth(40))
	require.Empty(t, r.cache)
}
