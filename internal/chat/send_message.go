package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// maxTitleLength is the number of characters of the first message used as chat title.
const maxTitleLength = 30

// dispatch is a send whose user message was appended.
type dispatch struct {
	chatID    string
	request   *gateway.SendMessageRequest
	sendMutex *sync.Mutex
}

// SendMessage sends a message to the active chat and appends the assistant
// reply. A chat is created if none is active. Empty messages are ignored and
// return nil.
func (s *State) SendMessage(ctx context.Context, text string, images []types.ImageContent) (*types.Message, error) {
	d, err := s.dispatch(ctx, text, images)
	if err != nil || d == nil {
		return nil, err
	}
	defer s.complete(d)

	callCtx, cancel := s.callContext(ctx, true)
	defer cancel()
	response, err := s.gateway.SendMessage(callCtx, d.request)
	if err != nil {
		err = errors.Wrap(err, "sending message")
		s.fail("send message", err)
		return nil, err
	}
	s.appendMessage(d.chatID, response.AssistantMessage)
	return response.AssistantMessage, nil
}

// dispatch validates a send, creates a chat if none is active, clears the
// draft and appends the user message. The returned dispatch holds the send
// mutex of its chat and must be completed.
func (s *State) dispatch(ctx context.Context, text string, images []types.ImageContent) (*dispatch, error) {
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return nil, nil
	}
	model, err := s.resolveModel()
	if err != nil {
		s.fail("send message", err)
		return nil, err
	}
	if len(images) > 0 && !model.SupportsVision {
		s.fail("send message", ErrVisionUnsupported)
		return nil, ErrVisionUnsupported
	}

	s.mutex.Lock()
	chatID := s.activeChatID
	s.mutex.Unlock()
	// The loading flag covers the creation of an implicit chat.
	counted := false
	if chatID == "" {
		s.setInflight(1)
		counted = true
		chat, err := s.createChat(ctx, model.ID)
		if err != nil {
			s.setInflight(-1)
			s.fail("send message", err)
			return nil, err
		}
		chatID = chat.ID
	}

	s.SetDraft("")
	sendMutex := s.sendMutex(chatID)
	sendMutex.Lock()

	now := time.Now()
	message := &types.Message{
		ID:        uuid.NewString(),
		Role:      types.RoleUser,
		Content:   text,
		Timestamp: now,
		Images:    append([]types.ImageContent(nil), images...),
	}
	s.mutex.Lock()
	chat := findChat(s.chats, chatID)
	if chat == nil {
		if counted {
			s.inflight--
		}
		s.mutex.Unlock()
		sendMutex.Unlock()
		s.fail("send message", ErrUnknownChat)
		return nil, ErrUnknownChat
	}
	if len(chat.Messages) == 0 && text != "" {
		chat.Title = title(text)
	}
	chat.Messages = append(chat.Messages, message)
	chat.UpdatedAt = now
	if !counted {
		s.inflight++
	}
	s.mutex.Unlock()
	s.notify()

	debug.GetLogger().Info("sending message", "chat_id", chatID, "model", model.ID, "images", len(images))
	return &dispatch{
		chatID:    chatID,
		sendMutex: sendMutex,
		request: &gateway.SendMessageRequest{
			SessionID: chatID,
			Message:   text,
			Model:     model.ID,
			Images:    message.Images,
		},
	}, nil
}

// complete clears the loading flag of a dispatch and releases its chat.
func (s *State) complete(d *dispatch) {
	s.mutex.Lock()
	s.inflight--
	delete(s.pendingReplies, d.chatID)
	s.mutex.Unlock()
	d.sendMutex.Unlock()
	s.notify()
}

// appendMessage appends a message to a chat. Messages for deleted chats are dropped.
func (s *State) appendMessage(chatID string, message *types.Message) {
	s.mutex.Lock()
	if chat := findChat(s.chats, chatID); chat != nil {
		chat.Messages = append(chat.Messages, message)
		chat.UpdatedAt = time.Now()
	}
	s.mutex.Unlock()
	s.notify()
}

// title derives a chat title from its first message.
func title(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxTitleLength {
		runes = runes[:maxTitleLength]
	}
	return string(runes)
}
