package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

var testImage = types.ImageContent{Type: types.ImageTypeBase64, Data: "AAAA", MediaType: "image/png"}

func TestSendMessageIgnoresEmpty(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)

	message, err := state.SendMessage(context.Background(), "  \n ", nil)
	require.NoError(t, err)
	require.Nil(t, message)
	require.ElementsMatch(t, []string{"ListModels", "ListSessions"}, fake.Calls())
}

func TestSendMessageCreatesChat(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	state.SetDraft("hello there")

	reply, err := state.SendMessage(context.Background(), "hello there", nil)
	require.NoError(t, err)
	require.Equal(t, "reply:hello there", reply.Content)

	snapshot := state.Snapshot()
	require.Len(t, snapshot.Chats, 1)
	chat := snapshot.ActiveChat()
	require.NotNil(t, chat)
	require.Equal(t, "hello there", chat.Title)
	require.Len(t, chat.Messages, 2)
	require.Equal(t, types.RoleUser, chat.Messages[0].Role)
	require.Equal(t, "hello there", chat.Messages[0].Content)
	require.Equal(t, types.RoleAssistant, chat.Messages[1].Role)
	require.Equal(t, "", snapshot.Draft)
	require.False(t, snapshot.Loading)
	require.Equal(t, "", snapshot.Error)

	require.Len(t, fake.requests, 1)
	require.Equal(t, chat.ID, fake.requests[0].SessionID)
	require.Equal(t, "vision", fake.requests[0].Model)
}

func TestSendMessageLoadingCoversChatCreation(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	var loading []bool
	fake.onCreateSession = func() { loading = append(loading, state.Snapshot().Loading) }

	_, err := state.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true}, loading)
	require.False(t, state.Snapshot().Loading)

	failing := newFakeGateway()
	failing.createSessionErr = errors.New("boom")
	state = newTestState(t, failing, nil)
	loading = nil
	failing.onCreateSession = func() { loading = append(loading, state.Snapshot().Loading) }
	_, err = state.SendMessage(context.Background(), "again", nil)
	require.Error(t, err)
	require.Equal(t, []bool{true}, loading)
	require.False(t, state.Snapshot().Loading)
}

func TestSendMessageUsesActiveChat(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	ctx := context.Background()
	first, err := state.CreateChat(ctx)
	require.NoError(t, err)
	_, err = state.CreateChat(ctx)
	require.NoError(t, err)
	require.NoError(t, state.SelectChat(first.ID))

	_, err = state.SendMessage(ctx, "hi", nil)
	require.NoError(t, err)
	snapshot := state.Snapshot()
	require.Len(t, snapshot.Chats, 2)
	require.Len(t, snapshot.ActiveChat().Messages, 2)
	require.Equal(t, first.ID, snapshot.ActiveChatID)
	require.Empty(t, snapshot.Chats[0].Messages)
}

func TestSendMessageTitle(t *testing.T) {
	state := newTestState(t, newFakeGateway(), nil)
	ctx := context.Background()

	long := "Çok uzun bir başlık olacak bu mesajın ilk otuz karakteri"
	_, err := state.SendMessage(ctx, long, nil)
	require.NoError(t, err)
	expected := string([]rune(long)[:30])
	require.Equal(t, expected, state.Snapshot().ActiveChat().Title)

	_, err = state.SendMessage(ctx, "a different message", nil)
	require.NoError(t, err)
	require.Equal(t, expected, state.Snapshot().ActiveChat().Title)
}

func TestSendMessageImageOnlyKeepsDefaultTitle(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)

	_, err := state.SendMessage(context.Background(), "", []types.ImageContent{testImage})
	require.NoError(t, err)
	chat := state.Snapshot().ActiveChat()
	require.Equal(t, types.DefaultChatTitle, chat.Title)
	require.Equal(t, []types.ImageContent{testImage}, chat.Messages[0].Images)
	require.Equal(t, []types.ImageContent{testImage}, fake.requests[0].Images)
}

func TestSendMessageVisionUnsupported(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	require.NoError(t, state.SelectModel("text"))

	_, err := state.SendMessage(context.Background(), "what is this?", []types.ImageContent{testImage})
	require.ErrorIs(t, err, ErrVisionUnsupported)

	snapshot := state.Snapshot()
	require.Empty(t, snapshot.Chats)
	require.Contains(t, snapshot.Error, "does not support images")
	require.ElementsMatch(t, []string{"ListModels", "ListSessions"}, fake.Calls())
}

func TestSendMessageVisionUnsupportedWithActiveChat(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	_, err := state.CreateChat(context.Background())
	require.NoError(t, err)
	require.NoError(t, state.SelectModel("text"))

	_, err = state.SendMessage(context.Background(), "", []types.ImageContent{testImage})
	require.ErrorIs(t, err, ErrVisionUnsupported)
	require.Empty(t, state.Snapshot().ActiveChat().Messages)
	require.NotContains(t, fake.Calls(), "SendMessage")
}

func TestSendMessageWithoutModels(t *testing.T) {
	fake := newFakeGateway()
	fake.models = nil
	state := newTestState(t, fake, nil)

	_, err := state.SendMessage(context.Background(), "hi", nil)
	require.ErrorIs(t, err, ErrNoModel)
	require.Empty(t, state.Snapshot().Chats)
}

func TestSendMessageRateLimited(t *testing.T) {
	fake := newFakeGateway()
	fake.sendErr = &gateway.Error{Kind: gateway.KindRateLimit, Status: 429}
	state := newTestState(t, fake, nil)

	_, err := state.SendMessage(context.Background(), "hi", nil)
	require.Error(t, err)
	snapshot := state.Snapshot()
	require.Equal(t, "The model is very busy right now. Please choose another model.", snapshot.Error)
	chat := snapshot.ActiveChat()
	require.Len(t, chat.Messages, 1)
	require.Equal(t, "hi", chat.Messages[0].Content)
	require.False(t, snapshot.Loading)
}

func TestSendMessageCreateSessionFailureAborts(t *testing.T) {
	fake := newFakeGateway()
	fake.createSessionErr = &gateway.Error{Kind: gateway.KindServer, Status: 500}
	state := newTestState(t, fake, nil)
	state.SetDraft("hi")

	_, err := state.SendMessage(context.Background(), "hi", nil)
	require.Error(t, err)
	snapshot := state.Snapshot()
	require.Empty(t, snapshot.Chats)
	require.Equal(t, "hi", snapshot.Draft)
	require.NotContains(t, fake.Calls(), "SendMessage")
}

func TestSendMessageSerializedPerChat(t *testing.T) {
	fake := newFakeGateway()
	fake.sendGate = make(chan struct{})
	state := newTestState(t, fake, nil)
	ctx := context.Background()
	_, err := state.CreateChat(ctx)
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := state.SendMessage(ctx, "first", nil)
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return state.Snapshot().Loading }, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := state.SendMessage(ctx, "second", nil)
		secondDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.Len(t, state.Snapshot().ActiveChat().Messages, 1)

	close(fake.sendGate)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	var contents []string
	for _, message := range state.Snapshot().ActiveChat().Messages {
		contents = append(contents, message.Content)
	}
	require.Equal(t, []string{"first", "reply:first", "second", "reply:second"}, contents)
	require.False(t, state.Snapshot().Loading)
}

func TestSendMessageToDeletedChat(t *testing.T) {
	fake := newFakeGateway()
	fake.sendGate = make(chan struct{})
	state := newTestState(t, fake, nil)
	ctx := context.Background()
	chat, err := state.CreateChat(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := state.SendMessage(ctx, "hello", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return state.Snapshot().Loading }, time.Second, time.Millisecond)
	require.NoError(t, state.DeleteChat(ctx, chat.ID))
	close(fake.sendGate)
	require.NoError(t, <-done)
	require.Empty(t, state.Snapshot().Chats)
}

func TestStreamMessage(t *testing.T) {
	fake := newFakeGateway()
	fake.fragments = []string{"Mer", "ha", "ba"}
	state := newTestState(t, fake, nil)

	var received []string
	message, err := state.StreamMessage(context.Background(), "selam", nil, func(fragment string) {
		received = append(received, fragment)
	})
	require.NoError(t, err)
	require.Equal(t, "Merhaba", message.Content)
	require.Equal(t, []string{"Mer", "ha", "ba"}, received)

	snapshot := state.Snapshot()
	chat := snapshot.ActiveChat()
	require.Len(t, chat.Messages, 2)
	require.Equal(t, "Merhaba", chat.Messages[1].Content)
	require.Equal(t, types.RoleAssistant, chat.Messages[1].Role)
	require.Equal(t, "", snapshot.PendingReply)
	require.False(t, snapshot.Loading)
}

func TestStreamMessageInterrupted(t *testing.T) {
	fake := newFakeGateway()
	fake.fragments = []string{"partial"}
	fake.streamErr = &gateway.Error{Kind: gateway.KindNetwork, Err: errors.New("reset")}
	state := newTestState(t, fake, nil)

	message, err := state.StreamMessage(context.Background(), "hi", nil, nil)
	require.Error(t, err)
	require.Equal(t, "partial", message.Content)
	snapshot := state.Snapshot()
	require.Len(t, snapshot.ActiveChat().Messages, 2)
	require.True(t, strings.HasPrefix(snapshot.Error, "Could not reach the server"))
}

func TestStreamMessageCancelled(t *testing.T) {
	fake := newFakeGateway()
	fake.streamErr = context.Canceled
	state := newTestState(t, fake, nil)

	message, err := state.StreamMessage(context.Background(), "hi", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, message)
	snapshot := state.Snapshot()
	require.Len(t, snapshot.ActiveChat().Messages, 1)
	require.Equal(t, "", snapshot.Error)
}

func TestStreamMessageVisionUnsupported(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	require.NoError(t, state.SelectModel("text"))

	_, err := state.StreamMessage(context.Background(), "hi", []types.ImageContent{testImage}, nil)
	require.ErrorIs(t, err, ErrVisionUnsupported)
	require.NotContains(t, fake.Calls(), "StreamMessage")
}
