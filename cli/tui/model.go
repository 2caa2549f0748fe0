// Package tui implements the terminal user interface of the chat client.
package tui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.dalton.dog/bubbleup"
	"golang.design/x/clipboard"

	"github.com/malonaz/madlen/cli/tui/styles"
	"github.com/malonaz/madlen/internal/chat"
	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/history"
	"github.com/malonaz/madlen/internal/image"
	"github.com/malonaz/madlen/internal/markdown"
	"github.com/malonaz/madlen/internal/prompts"
	"github.com/malonaz/madlen/internal/types"
)

const renderThrottleInterval = 66 * time.Millisecond

var log *slog.Logger

type focus int

const (
	focusComposer focus = iota
	focusSidebar
)

type dialog int

const (
	dialogNone dialog = iota
	dialogConfirmDelete
	dialogModelPicker
	dialogAttach
	dialogPreview
	dialogVisionWarning
)

// Opts for the user interface.
type Opts struct {
	// If set, replies are streamed.
	Stream bool
	// Templates of the prompts suggested on an empty chat.
	StarterPrompts []string
}

// attachment is an image added to the composer.
type attachment struct {
	name    string
	size    int64
	width   int
	height  int
	content types.ImageContent
	// Empty for remote images.
	previewURL string
}

// pendingSend is a message being sent.
type pendingSend struct {
	text        string
	attachments []*attachment
}

// Model represents the Bubble Tea model of the chat client.
type Model struct {
	// Core dependencies
	ctx      context.Context
	state    *chat.State
	opts     *Opts
	history  *history.History
	previews *image.Previews

	// Latest copy of the chat state.
	snapshot *chat.Snapshot

	// UI components
	textarea    textarea.Model
	viewport    viewport.Model
	spinner     spinner.Model
	attachInput textinput.Model
	renderer    *markdown.Renderer

	// Alert notifications.
	alertClipboardWrite bubbleup.AlertModel
	clipboardReady      bool

	// UI state
	width              int
	height             int
	ready              bool
	quitting           bool
	focus              focus
	dialog             dialog
	sidebarCursor      int
	dialogCursor       int
	deleteChatID       string
	visionModels       []*types.Model
	visionModelsLoaded bool
	attachments        []*attachment
	starterPrompts     []string
	lastRender         time.Time
	renderScheduled    bool

	// Send in flight.
	pending    *pendingSend
	cancelSend context.CancelFunc

	// Program reference for sending messages from goroutines
	program   *tea.Program
	programMu sync.Mutex

	// Input history
	historyNavigating bool
}

// New creates a new model.
func New(ctx context.Context, state *chat.State, history *history.History, previews *image.Previews, opts *Opts) (*Model, error) {
	log = debug.GetLogger()

	ta := textarea.New()
	ta.Placeholder = "Type your message... (Ctrl+J to send, Ctrl+A to attach an image, Ctrl+C to quit)"
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(styles.DefaultWidth)
	ta.SetHeight(styles.MinTextareaHeight)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(true)
	ta.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	attachInput := textinput.New()
	attachInput.Placeholder = "~/Pictures/cat.png, https://... or data:image/png;base64,..."
	attachInput.CharLimit = 0

	renderer, err := markdown.NewRenderer(styles.DefaultWidth)
	if err != nil {
		return nil, err
	}

	clipboardReady := true
	if err := clipboard.Init(); err != nil {
		log.Warn("clipboard unavailable", "error", err)
		clipboardReady = false
	}

	return &Model{
		ctx:                 ctx,
		state:               state,
		opts:                opts,
		history:             history,
		previews:            previews,
		snapshot:            state.Snapshot(),
		textarea:            ta,
		spinner:             sp,
		attachInput:         attachInput,
		renderer:            renderer,
		alertClipboardWrite: *bubbleup.NewAlertModel(25, true, 1),
		clipboardReady:      clipboardReady,
		focus:               focusComposer,
	}, nil
}

// SetProgram sets the tea.Program reference for async message sending.
func (m *Model) SetProgram(p *tea.Program) {
	m.programMu.Lock()
	defer m.programMu.Unlock()
	m.program = p
}

// getProgram safely gets the program reference.
func (m *Model) getProgram() *tea.Program {
	m.programMu.Lock()
	defer m.programMu.Unlock()
	return m.program
}

// Notify the model that the chat state changed. Safe to call from any goroutine.
func (m *Model) Notify() {
	if p := m.getProgram(); p != nil {
		go p.Send(stateChangedMsg{})
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.alertClipboardWrite.Init(),
		m.initialize(),
	)
}

// refresh takes a new snapshot of the chat state.
func (m *Model) refresh() {
	m.snapshot = m.state.Snapshot()
	if m.sidebarCursor >= len(m.snapshot.Chats) {
		m.sidebarCursor = max(len(m.snapshot.Chats)-1, 0)
	}
}

// renderStarterPrompts renders the starter prompts for the selected model.
func (m *Model) renderStarterPrompts() {
	modelName := ""
	if model := m.snapshot.SelectedModel(); model != nil {
		modelName = model.Label()
	}
	starterPrompts, err := prompts.Render(m.opts.StarterPrompts, prompts.NewTemplateData(modelName))
	if err != nil {
		log.Warn("rendering starter prompts", "error", err)
		return
	}
	m.starterPrompts = starterPrompts
}

// showStarterPrompts returns true if the active conversation is empty.
func (m *Model) showStarterPrompts() bool {
	if len(m.starterPrompts) == 0 {
		return false
	}
	active := m.snapshot.ActiveChat()
	return active == nil || len(active.Messages) == 0
}

// lastAssistantMessage returns the latest reply of the active chat.
func (m *Model) lastAssistantMessage() *types.Message {
	active := m.snapshot.ActiveChat()
	if active == nil {
		return nil
	}
	for i := len(active.Messages) - 1; i >= 0; i-- {
		if active.Messages[i].Role == types.RoleAssistant {
			return active.Messages[i]
		}
	}
	return nil
}

// releaseAttachments releases the previews of the given attachments.
func (m *Model) releaseAttachments(attachments []*attachment) {
	for _, a := range attachments {
		if a.previewURL == "" {
			continue
		}
		if err := m.previews.Release(a.previewURL); err != nil {
			log.Warn("releasing preview", "url", a.previewURL, "error", err)
		}
		a.previewURL = ""
	}
}

// Close releases the resources held by the model.
func (m *Model) Close() {
	if m.cancelSend != nil {
		m.cancelSend()
	}
	m.releaseAttachments(m.attachments)
	if m.pending != nil {
		m.releaseAttachments(m.pending.attachments)
	}
	if err := m.previews.ReleaseAll(); err != nil {
		log.Warn("releasing previews", "error", err)
	}
}
