package tui

import (
	"github.com/malonaz/madlen/internal/types"
)

// stateChangedMsg is sent whenever the chat state changed.
type stateChangedMsg struct{}

// initializedMsg is sent once the chat state is initialized.
type initializedMsg struct {
	err error
}

// intentDoneMsg is sent when an intent dispatched to the chat state completes.
type intentDoneMsg struct {
	intent string
	err    error
}

// sendDoneMsg is sent when a message send completes.
type sendDoneMsg struct {
	pending *pendingSend
	err     error
}

// streamRenderMsg asks for a render of the reply being streamed.
type streamRenderMsg struct{}

// attachedMsg is sent when an image was loaded.
type attachedMsg struct {
	attachment *attachment
	err        error
}

// visionModelsMsg carries the models to suggest after an image was rejected.
type visionModelsMsg struct {
	models []*types.Model
}
