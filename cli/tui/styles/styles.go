package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Layout constants
const (
	// Textarea
	MinTextareaHeight   = 3
	MaxTextareaHeight   = 12
	DefaultWidth        = 80
	TextAreaPaddingLeft = 1

	// Sidebar
	SidebarWidth    = 30
	MinSidebarWidth = 60

	// Viewport
	MinViewportHeight = 1

	// Layout
	MessagePaddingLeft = 2

	// Dialogs
	DialogPaddingHorizontal = 2
	DialogPaddingVertical   = 1
	DialogWidth             = 60

	// Truncation
	TruncateSuffix = "…"
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7C3AED") // Purple
	SecondaryColor = lipgloss.Color("#06B6D4") // Cyan
	AccentColor    = lipgloss.Color("#F59E0B") // Amber
	SuccessColor   = lipgloss.Color("#10B981") // Green
	ErrorColor     = lipgloss.Color("#EF4444") // Red
	MutedColor     = lipgloss.Color("#6B7280") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light gray
	DimTextColor   = lipgloss.Color("#9CA3AF") // Dim gray
	BorderColor    = lipgloss.Color("#4B5563")
	ImageColor     = lipgloss.Color("#F472B6") // Pink
	SelectedColor  = lipgloss.Color("#10B981")
)

// Title bar
var (
	TitleStyle = lipgloss.NewStyle().
			Background(PrimaryColor).
			Foreground(TextColor).
			Bold(true)

	FreeBadgeStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SuccessColor).
			Padding(0, 1)

	VisionBadgeStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(SecondaryColor).
				Padding(0, 1)
)

// Sidebar
var (
	SidebarStyle = lipgloss.NewStyle().
			Width(SidebarWidth).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(BorderColor).
			PaddingRight(1)

	SidebarFocusedStyle = lipgloss.NewStyle().
				Inherit(SidebarStyle).
				BorderForeground(PrimaryColor)

	ChatItemStyle = lipgloss.NewStyle().
			Foreground(DimTextColor).
			PaddingLeft(1)

	ActiveChatItemStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(PrimaryColor)

	CursorChatItemStyle = lipgloss.NewStyle().
				Foreground(AccentColor).
				PaddingLeft(1)

	ChatDateStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)
)

// Messages.
var (
	messageStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder())

	UserMessageStyle = lipgloss.NewStyle().
				Inherit(messageStyle).
				BorderForeground(PrimaryColor).
				MarginLeft(10)

	AssistantMessageStyle = lipgloss.NewStyle().
				Inherit(messageStyle).
				BorderForeground(SecondaryColor).
				MarginRight(10)

	ImageStyle = lipgloss.NewStyle().
			Foreground(ImageColor).
			Italic(true)

	DimTextStyle = lipgloss.NewStyle().
			Foreground(DimTextColor)
)

// Error banner
var (
	ErrorStyle = lipgloss.NewStyle().
		Foreground(TextColor).
		Background(ErrorColor).
		Bold(true).
		Padding(0, 1)
)

// Input area
var (
	TextAreaStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			PaddingLeft(TextAreaPaddingLeft)

	TextAreaDisabledStyle = lipgloss.NewStyle().
				Inherit(TextAreaStyle).
				BorderForeground(MutedColor)

	AttachmentStyle = lipgloss.NewStyle().
			Foreground(ImageColor)
)

// Starter prompts
var (
	StarterPromptStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(BorderColor).
				Foreground(DimTextColor).
				Padding(0, 1)

	StarterPromptKeyStyle = lipgloss.NewStyle().
				Foreground(AccentColor).
				Bold(true)
)

// Spinner
var (
	SpinnerStyle = lipgloss.NewStyle().
		Foreground(SecondaryColor)
)

// Help text
var (
	HelpStyle = lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)
)

// Dialogs
var (
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(AccentColor).
			Padding(DialogPaddingVertical, DialogPaddingHorizontal).
			Width(DialogWidth)

	DialogTitleStyle = lipgloss.NewStyle().
				Foreground(AccentColor).
				Bold(true)

	DialogItemStyle = lipgloss.NewStyle().
			Foreground(DimTextColor)

	DialogSelectedItemStyle = lipgloss.NewStyle().
				Foreground(SelectedColor).
				Bold(true)
)

// Viewport
var (
	ViewportStyle = lipgloss.NewStyle().Margin(0).Padding(0)
)

// MessageHorizontalFrameSize returns the horizontal frame size of assistant messages.
func MessageHorizontalFrameSize() int {
	return AssistantMessageStyle.GetHorizontalFrameSize()
}

// Truncate truncates a string to the specified number of runes with a suffix.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + TruncateSuffix
}
