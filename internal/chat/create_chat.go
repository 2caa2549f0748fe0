package chat

import (
	"context"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/types"
)

// CreateChat creates a chat bound to the selected model and makes it active.
func (s *State) CreateChat(ctx context.Context) (*types.Chat, error) {
	model, err := s.resolveModel()
	if err != nil {
		s.fail("create chat", err)
		return nil, err
	}
	chat, err := s.createChat(ctx, model.ID)
	if err != nil {
		s.fail("create chat", err)
		return nil, err
	}
	return chat.Clone(), nil
}

// createChat creates a chat on the backend, prepends it and makes it active.
func (s *State) createChat(ctx context.Context, modelID string) (*types.Chat, error) {
	ctx, cancel := s.callContext(ctx, true)
	defer cancel()
	chat, err := s.gateway.CreateSession(ctx, s.opts.UserID, modelID)
	if err != nil {
		return nil, errors.Wrap(err, "creating chat")
	}
	if chat.Model == "" {
		chat.Model = modelID
	}

	s.mutex.Lock()
	s.chats = append([]*types.Chat{chat}, s.chats...)
	s.activeChatID = chat.ID
	s.mutex.Unlock()
	s.notify()

	debug.GetLogger().Info("chat created", "chat_id", chat.ID, "model", modelID)
	return chat, nil
}
