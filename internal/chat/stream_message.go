package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// StreamMessage behaves like SendMessage but streams the assistant reply.
// Every fragment is passed to onFragment, if set, as it arrives. When the
// stream is interrupted, the partial reply received so far is kept.
func (s *State) StreamMessage(ctx context.Context, text string, images []types.ImageContent, onFragment func(string)) (*types.Message, error) {
	d, err := s.dispatch(ctx, text, images)
	if err != nil || d == nil {
		return nil, err
	}
	defer s.complete(d)

	callCtx, cancel := s.callContext(ctx, false)
	defer cancel()
	stream, err := s.gateway.StreamMessage(callCtx, d.request)
	if err != nil {
		err = errors.Wrap(err, "streaming message")
		s.fail("stream message", err)
		return nil, err
	}
	defer stream.Close()

	reply := &strings.Builder{}
	var streamErr error
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		reply.WriteString(fragment)
		s.mutex.Lock()
		s.pendingReplies[d.chatID] = reply.String()
		s.mutex.Unlock()
		if onFragment != nil {
			onFragment(fragment)
		}
		s.notify()
	}

	var message *types.Message
	if reply.Len() > 0 {
		message = &types.Message{
			ID:        uuid.NewString(),
			Role:      types.RoleAssistant,
			Content:   reply.String(),
			Timestamp: time.Now(),
		}
		s.appendMessage(d.chatID, message)
	}
	if streamErr != nil {
		streamErr = errors.Wrap(streamErr, "streaming message")
		if !errors.Is(streamErr, context.Canceled) && !errors.Is(streamErr, gateway.ErrStreamClosed) {
			s.fail("stream message", streamErr)
		}
		return message, streamErr
	}
	return message, nil
}
