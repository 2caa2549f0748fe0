package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/malonaz/madlen/cli/tui/styles"
)

// adjustTextareaHeight resizes the textarea based on content line count.
func (m *Model) adjustTextareaHeight() {
	content := m.textarea.Value()
	lineCount := strings.Count(content, "\n") + 1

	newHeight := lineCount
	if newHeight < styles.MinTextareaHeight {
		newHeight = styles.MinTextareaHeight
	}
	if newHeight > styles.MaxTextareaHeight {
		newHeight = styles.MaxTextareaHeight
	}

	oldHeight := m.textarea.Height()
	if oldHeight != newHeight {
		m.textarea.SetHeight(newHeight)

		heightDiff := newHeight - oldHeight

		m.recalculateLayout()

		if heightDiff > 0 && m.ready {
			m.viewport.LineDown(heightDiff)
		}
	}
}

// showSidebar returns true if the terminal is wide enough for the chat list.
func (m *Model) showSidebar() bool {
	return m.width >= styles.SidebarWidth+styles.MinSidebarWidth
}

// sidebarTotalWidth returns the width taken by the chat list, borders included.
func (m *Model) sidebarTotalWidth() int {
	if !m.showSidebar() {
		return 0
	}
	return styles.SidebarWidth + styles.SidebarStyle.GetHorizontalBorderSize() + styles.SidebarStyle.GetHorizontalMargins()
}

// mainWidth returns the width of the conversation pane.
func (m *Model) mainWidth() int {
	return max(m.width-m.sidebarTotalWidth(), 1)
}

// chromeHeight returns the number of lines around the viewport.
func (m *Model) chromeHeight() int {
	height := headerHeight + helpHeight
	if m.snapshot.Error != "" {
		height++
	}
	if m.pending != nil {
		height++
	}
	if len(m.attachments) > 0 {
		height++
	}
	return height + m.textarea.Height() + styles.TextAreaStyle.GetVerticalFrameSize()
}

// recalculateLayout adjusts viewport and textarea dimensions based on current state.
func (m *Model) recalculateLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	viewportHeight := max(m.height-m.chromeHeight(), styles.MinViewportHeight)
	viewportWidth := m.mainWidth()

	rendererWidth := max(viewportWidth-styles.MessageHorizontalFrameSize()-styles.MessagePaddingLeft, 10)
	if err := m.renderer.SetWidth(rendererWidth); err != nil {
		log.Warn("resizing renderer", "error", err)
	}

	if !m.ready {
		m.viewport = viewport.New(viewportWidth, viewportHeight)
		m.ready = true
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
	} else {
		m.viewport.Width = viewportWidth
		m.viewport.Height = viewportHeight
		m.viewport.SetContent(m.renderMessages())
	}

	m.textarea.SetWidth(viewportWidth - styles.TextAreaStyle.GetHorizontalPadding() - styles.TextAreaStyle.GetHorizontalBorderSize())
	m.attachInput.Width = styles.DialogWidth - styles.DialogStyle.GetHorizontalFrameSize() - 2
}

// renderViewport re-renders the conversation, following the bottom if the user was there.
func (m *Model) renderViewport() {
	m.lastRender = time.Now()
	atBottom := !m.ready || m.viewport.AtBottom()
	m.recalculateLayout()
	if atBottom {
		m.viewport.GotoBottom()
	}
}
