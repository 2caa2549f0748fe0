package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/malonaz/madlen/cli/tui/styles"
	"github.com/malonaz/madlen/internal/image"
	"github.com/malonaz/madlen/internal/types"
)

// renderMessages renders the active conversation.
func (m *Model) renderMessages() string {
	if m.showStarterPrompts() && m.pending == nil {
		return m.renderStarterPromptsView()
	}

	active := m.snapshot.ActiveChat()
	if active == nil {
		return ""
	}

	width := m.mainWidth()
	var b strings.Builder
	for i, message := range active.Messages {
		// Ids are only unique within a chat.
		cacheKey := fmt.Sprintf("%s/%d/%s", active.ID, i, message.ID)
		b.WriteString(m.renderMessage(cacheKey, message, width))
		b.WriteString("\n")
	}

	if m.pending != nil {
		if m.snapshot.PendingReply != "" {
			rendered := m.renderer.RenderPartial(m.snapshot.PendingReply)
			b.WriteString(styles.AssistantMessageStyle.Render(strings.Trim(rendered, "\n")))
		} else {
			b.WriteString(styles.DimTextStyle.Render(m.spinner.View() + " Thinking..."))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(cacheKey string, message *types.Message, width int) string {
	if message.Role == types.RoleUser {
		contentWidth := max(width-styles.UserMessageStyle.GetHorizontalFrameSize(), 10)
		var parts []string
		if message.Content != "" {
			parts = append(parts, ansi.Wordwrap(message.Content, contentWidth, " -"))
		}
		for _, img := range message.Images {
			parts = append(parts, styles.ImageStyle.Render(styles.Truncate(describeImage(img), contentWidth)))
		}
		return styles.UserMessageStyle.Render(strings.Join(parts, "\n"))
	}

	rendered := m.renderer.Render(cacheKey, message.Content)
	return styles.AssistantMessageStyle.Render(strings.Trim(rendered, "\n"))
}

// describeImage returns a one line description of an image of a message.
func describeImage(img types.ImageContent) string {
	if img.Type == types.ImageTypeURL {
		return "🖼  " + image.ToDisplayURL(img)
	}
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "image"
	}
	size := int64(len(image.StripDataURIPrefix(img.Data)) * 3 / 4)
	return fmt.Sprintf("🖼  %s · %s", mediaType, image.FormatSize(size))
}

func (m *Model) renderStarterPromptsView() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("How can I help you today?"))
	b.WriteString("\n\n")
	width := max(m.mainWidth()-styles.StarterPromptStyle.GetHorizontalFrameSize()-4, 10)
	for i, prompt := range m.starterPrompts {
		key := styles.StarterPromptKeyStyle.Render(fmt.Sprintf("%d", i+1))
		b.WriteString(styles.StarterPromptStyle.Render(key + " " + styles.Truncate(prompt, width)))
		b.WriteString("\n")
	}
	b.WriteString(styles.HelpStyle.Render("Press a number to use a prompt."))
	return b.String()
}
