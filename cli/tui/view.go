package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/malonaz/madlen/cli/tui/styles"
	"github.com/malonaz/madlen/internal/image"
	"github.com/malonaz/madlen/internal/types"
)

const (
	headerHeight = 1
	helpHeight   = 1
)

// View renders the model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	body := m.renderMain()
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	view := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderHelp())
	return m.alertClipboardWrite.Render(view)
}

func (m *Model) renderHeader() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("madlen"))
	title := types.DefaultChatTitle
	if active := m.snapshot.ActiveChat(); active != nil {
		title = active.Title
	}
	b.WriteString(" " + title)
	if model := m.snapshot.SelectedModel(); model != nil {
		b.WriteString(styles.DimTextStyle.Render(" · " + model.Label()))
		b.WriteString(renderBadges(model))
	} else {
		b.WriteString(styles.DimTextStyle.Render(" · no model"))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func renderBadges(model *types.Model) string {
	var b strings.Builder
	if model.Free {
		b.WriteString(" " + styles.FreeBadgeStyle.Render("free"))
	}
	if model.SupportsVision {
		b.WriteString(" " + styles.VisionBadgeStyle.Render("vision"))
	}
	return b.String()
}

func (m *Model) renderSidebar() string {
	height := max(m.height-headerHeight-helpHeight, 1)
	itemWidth := styles.SidebarWidth - styles.SidebarStyle.GetHorizontalPadding() - 2

	var lines []string
	if len(m.snapshot.Chats) == 0 {
		lines = append(lines, styles.DimTextStyle.Render(" No chats yet"))
	}
	// Each chat takes two lines.
	visible := max(height/2, 1)
	start := 0
	if m.sidebarCursor >= visible {
		start = m.sidebarCursor - visible + 1
	}
	for i := start; i < len(m.snapshot.Chats) && i < start+visible; i++ {
		c := m.snapshot.Chats[i]
		title := styles.Truncate(c.Title, itemWidth)
		style := styles.ChatItemStyle
		switch {
		case m.focus == focusSidebar && i == m.sidebarCursor:
			style = styles.CursorChatItemStyle
		case c.ID == m.snapshot.ActiveChatID:
			style = styles.ActiveChatItemStyle
		}
		lines = append(lines, style.Render(title))
		date := ""
		if !c.UpdatedAt.IsZero() {
			date = humanize.Time(c.UpdatedAt)
		}
		lines = append(lines, style.Render(styles.ChatDateStyle.Render(date)))
	}

	style := styles.SidebarStyle
	if m.focus == focusSidebar {
		style = styles.SidebarFocusedStyle
	}
	return style.Height(height).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderMain() string {
	width := m.mainWidth()
	var sections []string

	if m.dialog != dialogNone {
		sections = append(sections, lipgloss.Place(width, m.viewport.Height, lipgloss.Center, lipgloss.Center, m.renderDialog()))
	} else {
		sections = append(sections, styles.ViewportStyle.Render(m.viewport.View()))
	}

	if m.snapshot.Error != "" {
		banner := styles.Truncate(m.snapshot.Error+"  (esc to dismiss)", max(width-styles.ErrorStyle.GetHorizontalFrameSize(), 1))
		sections = append(sections, styles.ErrorStyle.Render(banner))
	}
	if m.pending != nil {
		sections = append(sections, fmt.Sprintf("%s Generating... (ctrl+c to cancel)", m.spinner.View()))
	}
	if len(m.attachments) > 0 {
		sections = append(sections, m.renderAttachments(width))
	}

	composer := styles.TextAreaStyle
	if m.pending != nil || m.focus != focusComposer {
		composer = styles.TextAreaDisabledStyle
	}
	sections = append(sections, composer.Render(m.textarea.View()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderAttachments(width int) string {
	names := make([]string, 0, len(m.attachments))
	for _, a := range m.attachments {
		names = append(names, a.name)
	}
	line := fmt.Sprintf("📎 %d image(s): %s (ctrl+p to preview)", len(m.attachments), strings.Join(names, ", "))
	return styles.AttachmentStyle.Render(styles.Truncate(line, width))
}

func (m *Model) renderHelp() string {
	var help string
	switch m.dialog {
	case dialogConfirmDelete:
		help = "y delete • n cancel"
	case dialogModelPicker:
		help = "↑/↓ move • enter select • esc cancel"
	case dialogVisionWarning:
		help = "↑/↓ move • enter switch model • x remove images • esc cancel"
	case dialogAttach:
		help = "enter attach • esc cancel"
	case dialogPreview:
		help = "↑/↓ move • x remove • esc close"
	default:
		if m.focus == focusSidebar {
			help = "↑/↓ move • enter open • d delete • tab composer • ctrl+n new chat"
		} else {
			help = "ctrl+j send • ctrl+n new chat • ctrl+o model • ctrl+a attach • alt+w copy • tab chats • ctrl+c quit"
		}
	}
	return styles.HelpStyle.Render(styles.Truncate(help, max(m.width, 1)))
}

func (m *Model) renderDialog() string {
	var b strings.Builder
	switch m.dialog {
	case dialogConfirmDelete:
		title := m.deleteChatID
		for _, c := range m.snapshot.Chats {
			if c.ID == m.deleteChatID {
				title = c.Title
			}
		}
		b.WriteString(styles.DialogTitleStyle.Render("Delete chat?"))
		b.WriteString("\n\n")
		b.WriteString(styles.DialogItemStyle.Render(fmt.Sprintf("%q will be deleted permanently.", title)))

	case dialogModelPicker:
		b.WriteString(styles.DialogTitleStyle.Render("Select a model"))
		b.WriteString("\n\n")
		if len(m.snapshot.Models) == 0 {
			b.WriteString(styles.DialogItemStyle.Render("No model available."))
			break
		}
		b.WriteString(m.renderModelList(m.snapshot.Models))

	case dialogVisionWarning:
		b.WriteString(styles.DialogTitleStyle.Render("This model cannot see images"))
		b.WriteString("\n\n")
		b.WriteString(styles.DialogItemStyle.Render("Switch to a vision-capable model or remove the images."))
		b.WriteString("\n\n")
		switch {
		case !m.visionModelsLoaded:
			b.WriteString(m.spinner.View() + " Loading vision models...")
		case len(m.visionModels) == 0:
			b.WriteString(styles.DialogItemStyle.Render("No vision model available."))
		default:
			b.WriteString(m.renderModelList(m.visionModels))
		}

	case dialogAttach:
		b.WriteString(styles.DialogTitleStyle.Render("Attach an image"))
		b.WriteString("\n\n")
		b.WriteString(m.attachInput.View())
		b.WriteString("\n\n")
		b.WriteString(styles.DialogItemStyle.Render(fmt.Sprintf("JPEG, PNG, GIF or WEBP, up to %s.", image.FormatSize(image.MaxSize))))

	case dialogPreview:
		b.WriteString(styles.DialogTitleStyle.Render("Attached images"))
		b.WriteString("\n\n")
		for i, a := range m.attachments {
			style := styles.DialogItemStyle
			cursor := "  "
			if i == m.dialogCursor {
				style = styles.DialogSelectedItemStyle
				cursor = "> "
			}
			b.WriteString(style.Render(cursor + describeAttachment(a)))
			b.WriteString("\n")
			if a.previewURL != "" {
				b.WriteString(styles.DimTextStyle.Render("    " + a.previewURL))
				b.WriteString("\n")
			}
		}
	}
	return styles.DialogStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// renderModelList renders models around the dialog cursor.
func (m *Model) renderModelList(models []*types.Model) string {
	visible := max(m.viewport.Height-10, 3)
	start := 0
	if m.dialogCursor >= visible {
		start = m.dialogCursor - visible + 1
	}
	var lines []string
	for i := start; i < len(models) && i < start+visible; i++ {
		model := models[i]
		style := styles.DialogItemStyle
		cursor := "  "
		if i == m.dialogCursor {
			style = styles.DialogSelectedItemStyle
			cursor = "> "
		}
		label := model.Label()
		if model.ID == m.snapshot.SelectedModelID {
			label += " (current)"
		}
		lines = append(lines, style.Render(cursor+label)+renderBadges(model))
	}
	return strings.Join(lines, "\n")
}

func describeAttachment(a *attachment) string {
	description := a.name
	if a.size > 0 {
		description += " · " + image.FormatSize(a.size)
	}
	if a.width > 0 && a.height > 0 {
		description += fmt.Sprintf(" · %dx%d", a.width, a.height)
	}
	if a.content.Type == types.ImageTypeURL {
		description += " · remote"
	}
	return description
}
