package chat

import (
	"context"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/types"
)

// SelectChat makes a chat active. An empty id leaves no chat active.
func (s *State) SelectChat(chatID string) error {
	s.mutex.Lock()
	if chatID != "" && findChat(s.chats, chatID) == nil {
		s.mutex.Unlock()
		return ErrUnknownChat
	}
	s.activeChatID = chatID
	s.mutex.Unlock()
	s.notify()
	return nil
}

// SelectModel selects a model of the catalog.
func (s *State) SelectModel(modelID string) error {
	s.mutex.Lock()
	if findModel(s.models, modelID) == nil {
		s.mutex.Unlock()
		return ErrUnknownModel
	}
	s.selectedModelID = modelID
	s.mutex.Unlock()
	s.notify()
	return nil
}

// SetDraft replaces the composer draft.
func (s *State) SetDraft(draft string) {
	s.mutex.Lock()
	s.draft = draft
	s.mutex.Unlock()
	s.notify()
}

// ClearError dismisses the current error, if any.
func (s *State) ClearError() {
	s.mutex.Lock()
	s.err = ""
	s.mutex.Unlock()
	s.notify()
}

// VisionModels returns the models accepting images. If the backend cannot
// list them, the catalog is filtered instead.
func (s *State) VisionModels(ctx context.Context) []*types.Model {
	ctx, cancel := s.callContext(ctx, true)
	defer cancel()
	models, err := s.gateway.ListVisionModels(ctx)
	if err == nil {
		return models
	}
	debug.GetLogger().Warn("listing vision models, falling back to catalog", "error", err)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	models = []*types.Model{}
	for _, model := range s.models {
		if model.SupportsVision {
			m := *model
			models = append(models, &m)
		}
	}
	return models
}

// SupportsVision returns true if the model accepts images, asking the backend
// when the catalog does not say so.
func (s *State) SupportsVision(ctx context.Context, modelID string) bool {
	s.mutex.Lock()
	model := findModel(s.models, modelID)
	s.mutex.Unlock()
	if model != nil && model.SupportsVision {
		return true
	}
	ctx, cancel := s.callContext(ctx, true)
	defer cancel()
	return s.gateway.SupportsVision(ctx, modelID)
}

// ReportError surfaces a failure detected by the presentation layer, such as
// a rejected attachment.
func (s *State) ReportError(err error) {
	if err == nil {
		return
	}
	s.fail("report error", err)
}
