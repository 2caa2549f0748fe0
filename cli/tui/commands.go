package tui

import (
	"context"
	"path"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/malonaz/madlen/internal/image"
	"github.com/malonaz/madlen/internal/types"
)

const (
	intentCreateChat = "create chat"
	intentDeleteChat = "delete chat"
)

// initialize loads the model catalog and the sessions.
func (m *Model) initialize() tea.Cmd {
	ctx := m.ctx
	state := m.state
	return func() tea.Msg {
		return initializedMsg{err: state.Initialize(ctx)}
	}
}

func (m *Model) createChat() tea.Cmd {
	ctx := m.ctx
	state := m.state
	return func() tea.Msg {
		_, err := state.CreateChat(ctx)
		return intentDoneMsg{intent: intentCreateChat, err: err}
	}
}

func (m *Model) deleteChat(chatID string) tea.Cmd {
	ctx := m.ctx
	state := m.state
	return func() tea.Msg {
		return intentDoneMsg{intent: intentDeleteChat, err: state.DeleteChat(ctx, chatID)}
	}
}

// loadVisionModels fetches the models able to process images.
func (m *Model) loadVisionModels() tea.Cmd {
	ctx := m.ctx
	state := m.state
	return func() tea.Msg {
		return visionModelsMsg{models: state.VisionModels(ctx)}
	}
}

// sendMessage sends the composer content along with its attachments.
func (m *Model) sendMessage() tea.Cmd {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" && len(m.attachments) == 0 {
		return nil
	}
	if m.pending != nil {
		return nil
	}

	if text != "" {
		if err := m.history.Add(text); err != nil {
			log.Warn("adding history entry", "error", err)
		}
	}
	m.historyNavigating = false

	pending := &pendingSend{text: text, attachments: m.attachments}
	images := make([]types.ImageContent, 0, len(pending.attachments))
	for _, a := range pending.attachments {
		images = append(images, a.content)
	}
	m.pending = pending
	m.attachments = nil
	m.textarea.Reset()
	m.renderer.ResetPartial()
	m.recalculateLayout()
	m.viewport.GotoBottom()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelSend = cancel
	state := m.state
	stream := m.opts.Stream
	return func() tea.Msg {
		defer cancel()
		var err error
		if stream {
			_, err = state.StreamMessage(ctx, text, images, nil)
		} else {
			_, err = state.SendMessage(ctx, text, images)
		}
		return sendDoneMsg{pending: pending, err: err}
	}
}

// attach loads an image from a path, a remote URL or a data URI.
func (m *Model) attach(input string) tea.Cmd {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	ctx := m.ctx
	previews := m.previews
	return func() tea.Msg {
		attachment, err := loadAttachment(ctx, previews, input)
		return attachedMsg{attachment: attachment, err: err}
	}
}

func loadAttachment(ctx context.Context, previews *image.Previews, input string) (*attachment, error) {
	content, f, err := image.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	if f == nil {
		a := &attachment{content: content}
		switch content.Type {
		case types.ImageTypeURL:
			a.name = path.Base(content.Data)
		default:
			a.name = "pasted " + strings.TrimPrefix(content.MediaType, "image/")
			a.size = int64(len(content.Data) * 3 / 4)
		}
		return a, nil
	}

	a := &attachment{name: f.Name, size: f.Size, content: content}
	if width, height, err := image.Dimensions(f); err == nil {
		a.width, a.height = width, height
	}
	previewURL, err := previews.Create(f)
	if err != nil {
		log.Warn("creating preview", "file", f.Name, "error", err)
	} else {
		a.previewURL = previewURL
	}
	return a, nil
}

// scheduleRender throttles renders of the reply being streamed.
func (m *Model) scheduleRender() tea.Cmd {
	if time.Since(m.lastRender) >= renderThrottleInterval {
		m.renderViewport()
		return nil
	}
	if m.renderScheduled {
		return nil
	}
	m.renderScheduled = true
	return tea.Tick(renderThrottleInterval, func(time.Time) tea.Msg {
		return streamRenderMsg{}
	})
}
