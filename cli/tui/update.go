package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.dalton.dog/bubbleup"
	"golang.design/x/clipboard"

	"github.com/malonaz/madlen/internal/chat"
)

type KeyMapSession struct {
	Quit         key.Binding
	CycleFocus   key.Binding
	NewChat      key.Binding
	PickModel    key.Binding
	Attach       key.Binding
	Preview      key.Binding
	Copy         key.Binding
	DismissError key.Binding
}

type KeyMapSidebar struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Delete key.Binding
}

type KeyMapDialog struct {
	Up      key.Binding
	Down    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Yes     key.Binding
	No      key.Binding
	Remove  key.Binding
}

type InputKeyMap struct {
	Send                 key.Binding
	PreviousHistoryEntry key.Binding
	NextHistoryEntry     key.Binding
	StarterPrompt        key.Binding
}

var keyMapSession = KeyMapSession{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
	),
	CycleFocus: key.NewBinding(
		key.WithKeys("tab"),
	),
	NewChat: key.NewBinding(
		key.WithKeys("ctrl+n"),
	),
	PickModel: key.NewBinding(
		key.WithKeys("ctrl+o"),
	),

	// Attachments.
	Attach: key.NewBinding(
		key.WithKeys("ctrl+a"),
	),
	Preview: key.NewBinding(
		key.WithKeys("ctrl+p"),
	),

	Copy: key.NewBinding(
		key.WithKeys("alt+w"),
	),
	DismissError: key.NewBinding(
		key.WithKeys("esc"),
	),
}

var keyMapSidebar = KeyMapSidebar{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
	),
}

var keyMapDialog = KeyMapDialog{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+k"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
	),
	Yes: key.NewBinding(
		key.WithKeys("y", "Y"),
	),
	No: key.NewBinding(
		key.WithKeys("n", "N"),
	),
	Remove: key.NewBinding(
		key.WithKeys("x", "delete"),
	),
}

var inputKeyMap = InputKeyMap{
	Send: key.NewBinding(
		key.WithKeys("ctrl+j", "ctrl+s"),
	),
	PreviousHistoryEntry: key.NewBinding(
		key.WithKeys("alt+p"),
	),
	NextHistoryEntry: key.NewBinding(
		key.WithKeys("alt+n"),
	),
	StarterPrompt: key.NewBinding(
		key.WithKeys("1", "2", "3", "4"),
	),
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Always update the alert model with every message
	outAlert, alertCmd := m.alertClipboardWrite.Update(msg)
	m.alertClipboardWrite = outAlert.(bubbleup.AlertModel)
	if alertCmd != nil {
		cmds = append(cmds, alertCmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalculateLayout()
		return m, tea.Batch(cmds...)

	case stateChangedMsg:
		m.refresh()
		if m.pending != nil {
			cmds = append(cmds, m.scheduleRender())
		} else {
			m.renderViewport()
		}
		return m, tea.Batch(cmds...)

	case streamRenderMsg:
		m.renderScheduled = false
		m.renderViewport()
		return m, tea.Batch(cmds...)

	case initializedMsg:
		if msg.err != nil {
			log.Warn("initializing", "error", msg.err)
		}
		m.refresh()
		m.renderStarterPrompts()
		m.renderViewport()
		m.viewport.GotoBottom()
		return m, tea.Batch(cmds...)

	case intentDoneMsg:
		if msg.err != nil {
			log.Warn("intent failed", "intent", msg.intent, "error", msg.err)
		}
		m.refresh()
		if msg.intent == intentCreateChat && msg.err == nil {
			cmds = append(cmds, m.focusComposer())
		}
		m.renderViewport()
		m.viewport.GotoBottom()
		return m, tea.Batch(cmds...)

	case sendDoneMsg:
		m.cancelSend = nil
		m.pending = nil
		m.renderer.ResetPartial()
		if errors.Is(msg.err, chat.ErrVisionUnsupported) {
			// Nothing was sent: give the composer its content back.
			m.textarea.SetValue(msg.pending.text)
			m.attachments = append(msg.pending.attachments, m.attachments...)
			m.dialog = dialogVisionWarning
			m.dialogCursor = 0
			m.visionModels = nil
			m.visionModelsLoaded = false
			cmds = append(cmds, m.loadVisionModels())
		} else {
			m.releaseAttachments(msg.pending.attachments)
		}
		if msg.err != nil {
			log.Warn("sending message", "error", msg.err)
		}
		m.refresh()
		m.recalculateLayout()
		m.viewport.GotoBottom()
		return m, tea.Batch(cmds...)

	case visionModelsMsg:
		m.visionModels = msg.models
		m.visionModelsLoaded = true
		m.dialogCursor = 0
		return m, tea.Batch(cmds...)

	case attachedMsg:
		if msg.err != nil {
			m.state.ReportError(msg.err)
			return m, tea.Batch(cmds...)
		}
		m.attachments = append(m.attachments, msg.attachment)
		m.recalculateLayout()
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))
		if m.quitting {
			return m, tea.Quit
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey dispatches a key press to the dialog, the sidebar or the composer.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, keyMapSession.Quit) {
		if m.cancelSend != nil {
			m.cancelSend()
			return nil
		}
		m.quitting = true
		return nil
	}

	if m.dialog != dialogNone {
		return m.handleDialogKey(msg)
	}

	switch {
	case key.Matches(msg, keyMapSession.NewChat):
		return m.createChat()

	case key.Matches(msg, keyMapSession.PickModel):
		m.dialog = dialogModelPicker
		m.dialogCursor = 0
		for i, model := range m.snapshot.Models {
			if model.ID == m.snapshot.SelectedModelID {
				m.dialogCursor = i
			}
		}
		return nil

	case key.Matches(msg, keyMapSession.Attach):
		m.dialog = dialogAttach
		m.attachInput.Reset()
		m.textarea.Blur()
		return m.attachInput.Focus()

	case key.Matches(msg, keyMapSession.Preview):
		if len(m.attachments) == 0 {
			return nil
		}
		m.dialog = dialogPreview
		m.dialogCursor = 0
		return nil

	case key.Matches(msg, keyMapSession.CycleFocus):
		if m.focus == focusComposer {
			m.focus = focusSidebar
			m.textarea.Blur()
			for i, c := range m.snapshot.Chats {
				if c.ID == m.snapshot.ActiveChatID {
					m.sidebarCursor = i
				}
			}
			return nil
		}
		return m.focusComposer()

	case key.Matches(msg, keyMapSession.Copy):
		message := m.lastAssistantMessage()
		if message == nil || !m.clipboardReady {
			return nil
		}
		clipboard.Write(clipboard.FmtText, []byte(message.Content))
		return m.alertClipboardWrite.NewAlertCmd(bubbleup.InfoKey, "Copied to clipboard!")

	case key.Matches(msg, keyMapSession.DismissError):
		if m.snapshot.Error != "" {
			m.state.ClearError()
		}
		return nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleComposerKey(msg)
}

func (m *Model) focusComposer() tea.Cmd {
	m.focus = focusComposer
	return tea.Batch(m.textarea.Focus(), textarea.Blink)
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	chats := m.snapshot.Chats
	switch {
	case key.Matches(msg, keyMapSidebar.Up):
		if m.sidebarCursor > 0 {
			m.sidebarCursor--
		}
	case key.Matches(msg, keyMapSidebar.Down):
		if m.sidebarCursor < len(chats)-1 {
			m.sidebarCursor++
		}
	case key.Matches(msg, keyMapSidebar.Select):
		if m.sidebarCursor >= len(chats) {
			return nil
		}
		if err := m.state.SelectChat(chats[m.sidebarCursor].ID); err != nil {
			log.Warn("selecting chat", "error", err)
			return nil
		}
		m.refresh()
		m.renderViewport()
		m.viewport.GotoBottom()
		return m.focusComposer()
	case key.Matches(msg, keyMapSidebar.Delete):
		if m.sidebarCursor >= len(chats) {
			return nil
		}
		m.deleteChatID = chats[m.sidebarCursor].ID
		m.dialog = dialogConfirmDelete
	}
	return nil
}

func (m *Model) handleComposerKey(msg tea.KeyMsg) tea.Cmd {
	// The composer is locked while a reply is pending.
	if m.pending != nil {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, inputKeyMap.Send):
		return m.sendMessage()

	case key.Matches(msg, inputKeyMap.PreviousHistoryEntry):
		if entry, ok := m.history.Previous(m.textarea.Value()); ok {
			m.textarea.SetValue(entry)
			m.historyNavigating = true
			m.adjustTextareaHeight()
		}
		return nil

	case key.Matches(msg, inputKeyMap.NextHistoryEntry):
		if !m.historyNavigating {
			return nil
		}
		if entry, ok := m.history.Next(); ok {
			m.textarea.SetValue(entry)
			m.adjustTextareaHeight()
		}
		return nil

	case key.Matches(msg, inputKeyMap.StarterPrompt):
		if m.textarea.Value() != "" || !m.showStarterPrompts() {
			break
		}
		index := int(msg.String()[0] - '1')
		if index >= len(m.starterPrompts) {
			break
		}
		m.textarea.SetValue(m.starterPrompts[index])
		m.adjustTextareaHeight()
		return nil
	}

	if m.historyNavigating {
		m.historyNavigating = false
		m.history.Reset()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.state.SetDraft(m.textarea.Value())
	m.adjustTextareaHeight()
	return cmd
}

func (m *Model) handleDialogKey(msg tea.KeyMsg) tea.Cmd {
	switch m.dialog {
	case dialogConfirmDelete:
		switch {
		case key.Matches(msg, keyMapDialog.Yes):
			chatID := m.deleteChatID
			m.closeDialog()
			return m.deleteChat(chatID)
		case key.Matches(msg, keyMapDialog.No), key.Matches(msg, keyMapDialog.Cancel):
			m.closeDialog()
		}
		return nil

	case dialogModelPicker, dialogVisionWarning:
		models := m.snapshot.Models
		if m.dialog == dialogVisionWarning {
			models = m.visionModels
		}
		switch {
		case key.Matches(msg, keyMapDialog.Up):
			if m.dialogCursor > 0 {
				m.dialogCursor--
			}
		case key.Matches(msg, keyMapDialog.Down):
			if m.dialogCursor < len(models)-1 {
				m.dialogCursor++
			}
		case key.Matches(msg, keyMapDialog.Confirm):
			if m.dialogCursor < len(models) {
				if err := m.state.SelectModel(models[m.dialogCursor].ID); err != nil {
					log.Warn("selecting model", "error", err)
				}
				m.refresh()
				m.renderStarterPrompts()
				m.renderViewport()
			}
			m.closeDialog()
			return m.focusComposer()
		case key.Matches(msg, keyMapDialog.Remove):
			if m.dialog == dialogVisionWarning {
				m.releaseAttachments(m.attachments)
				m.attachments = nil
				m.closeDialog()
				m.recalculateLayout()
				return m.focusComposer()
			}
		case key.Matches(msg, keyMapDialog.Cancel):
			m.closeDialog()
			return m.focusComposer()
		}
		return nil

	case dialogAttach:
		switch {
		case key.Matches(msg, keyMapDialog.Confirm):
			input := m.attachInput.Value()
			m.closeDialog()
			return tea.Batch(m.attach(input), m.focusComposer())
		case key.Matches(msg, keyMapDialog.Cancel):
			m.closeDialog()
			return m.focusComposer()
		}
		var cmd tea.Cmd
		m.attachInput, cmd = m.attachInput.Update(msg)
		return cmd

	case dialogPreview:
		switch {
		case key.Matches(msg, keyMapDialog.Up):
			if m.dialogCursor > 0 {
				m.dialogCursor--
			}
		case key.Matches(msg, keyMapDialog.Down):
			if m.dialogCursor < len(m.attachments)-1 {
				m.dialogCursor++
			}
		case key.Matches(msg, keyMapDialog.Remove):
			if m.dialogCursor < len(m.attachments) {
				removed := m.attachments[m.dialogCursor]
				m.releaseAttachments(m.attachments[m.dialogCursor : m.dialogCursor+1])
				m.attachments = append(m.attachments[:m.dialogCursor:m.dialogCursor], m.attachments[m.dialogCursor+1:]...)
				log.Debug("removed attachment", "name", removed.name)
			}
			if len(m.attachments) == 0 {
				m.closeDialog()
				m.recalculateLayout()
				return m.focusComposer()
			}
			m.dialogCursor = min(m.dialogCursor, len(m.attachments)-1)
			m.recalculateLayout()
		case key.Matches(msg, keyMapDialog.Cancel), key.Matches(msg, keyMapDialog.Confirm):
			m.closeDialog()
			return m.focusComposer()
		}
		return nil
	}
	return nil
}

func (m *Model) closeDialog() {
	m.dialog = dialogNone
	m.dialogCursor = 0
	m.deleteChatID = ""
	m.attachInput.Blur()
}

func (m *Model) filter(model tea.Model, msg tea.Msg) tea.Msg {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && strings.HasPrefix(keyMsg.String(), "alt+") {
		log.Debug("keymsg", "val", keyMsg.String())
	}
	return msg
}

// Filter returns the filter function for the tea.Program.
func (m *Model) Filter() func(tea.Model, tea.Msg) tea.Msg {
	return m.filter
}
