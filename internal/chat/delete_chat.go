package chat

import (
	"context"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/debug"
)

// DeleteChat deletes a chat. If it was active, no chat is active afterwards.
func (s *State) DeleteChat(ctx context.Context, chatID string) error {
	callCtx, cancel := s.callContext(ctx, true)
	defer cancel()
	if err := s.gateway.DeleteSession(callCtx, chatID, s.opts.UserID); err != nil {
		err = errors.Wrap(err, "deleting chat")
		s.fail("delete chat", err)
		return err
	}

	s.mutex.Lock()
	for i, chat := range s.chats {
		if chat.ID == chatID {
			s.chats = append(s.chats[:i:i], s.chats[i+1:]...)
			break
		}
	}
	if s.activeChatID == chatID {
		s.activeChatID = ""
	}
	delete(s.pendingReplies, chatID)
	delete(s.chatIDToSendMutex, chatID)
	s.mutex.Unlock()
	s.notify()

	debug.GetLogger().Info("chat deleted", "chat_id", chatID)
	return nil
}
