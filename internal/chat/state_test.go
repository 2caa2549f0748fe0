package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// fakeGateway records calls and serves canned responses.
type fakeGateway struct {
	mutex sync.Mutex
	calls []string

	models       []*types.Model
	visionModels []*types.Model
	sessions     []*types.Chat
	nextID       int

	listModelsErr    error
	listSessionsErr  error
	listVisionErr    error
	createSessionErr error
	deleteSessionErr error
	sendErr          error
	supportsVision   bool

	reply     string
	fragments []string
	streamErr error
	requests  []*gateway.SendMessageRequest
	// If set, SendMessage blocks until it is closed.
	sendGate chan struct{}
	// If set, called at the start of CreateSession.
	onCreateSession func()
}

func (f *fakeGateway) record(call string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) Calls() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) ListModels(ctx context.Context) ([]*types.Model, error) {
	f.record("ListModels")
	return f.models, f.listModelsErr
}

func (f *fakeGateway) ListVisionModels(ctx context.Context) ([]*types.Model, error) {
	f.record("ListVisionModels")
	return f.visionModels, f.listVisionErr
}

func (f *fakeGateway) SupportsVision(ctx context.Context, modelID string) bool {
	f.record("SupportsVision")
	return f.supportsVision
}

func (f *fakeGateway) CreateSession(ctx context.Context, userID, modelID string) (*types.Chat, error) {
	f.record("CreateSession")
	if f.onCreateSession != nil {
		f.onCreateSession()
	}
	if f.createSessionErr != nil {
		return nil, f.createSessionErr
	}
	f.mutex.Lock()
	f.nextID++
	id := fmt.Sprintf("s%d", f.nextID)
	f.mutex.Unlock()
	now := time.Now()
	return &types.Chat{ID: id, Title: types.DefaultChatTitle, Model: modelID, CreatedAt: now, UpdatedAt: now, Messages: []*types.Message{}}, nil
}

func (f *fakeGateway) ListSessions(ctx context.Context, userID string) ([]*types.Chat, error) {
	f.record("ListSessions")
	return f.sessions, f.listSessionsErr
}

func (f *fakeGateway) DeleteSession(ctx context.Context, sessionID, userID string) error {
	f.record("DeleteSession")
	return f.deleteSessionErr
}

func (f *fakeGateway) SendMessage(ctx context.Context, request *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error) {
	f.record("SendMessage")
	f.mutex.Lock()
	f.requests = append(f.requests, request)
	gate := f.sendGate
	f.mutex.Unlock()
	if gate != nil {
		<-gate
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &gateway.SendMessageResponse{
		AssistantMessage: &types.Message{ID: "reply", Role: types.RoleAssistant, Content: f.reply + ":" + request.Message, Timestamp: time.Now()},
		SessionID:        request.SessionID,
	}, nil
}

func (f *fakeGateway) StreamMessage(ctx context.Context, request *gateway.SendMessageRequest) (gateway.Stream, error) {
	f.record("StreamMessage")
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &fakeStream{fragments: append([]string(nil), f.fragments...), err: f.streamErr}, nil
}

type fakeStream struct {
	fragments []string
	err       error
	closed    bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.fragments) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	fragment := s.fragments[0]
	s.fragments = s.fragments[1:]
	return fragment, nil
}

func (s *fakeStream) Close() { s.closed = true }

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		models: []*types.Model{
			{ID: "text", Name: "Text only"},
			{ID: "vision", Name: "Vision", SupportsVision: true},
		},
		reply: "reply",
	}
}

func newTestState(t *testing.T, fake *fakeGateway, opts *Opts) *State {
	t.Helper()
	if opts == nil {
		opts = &Opts{UserID: "demo-user"}
	}
	state := New(fake, opts)
	t.Cleanup(state.Close)
	require.NoError(t, state.Initialize(context.Background()))
	return state
}

func requireActiveValid(t *testing.T, snapshot *Snapshot) {
	t.Helper()
	if snapshot.ActiveChatID != "" {
		require.NotNil(t, snapshot.ActiveChat(), "active chat %s is dangling", snapshot.ActiveChatID)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("prefers vision model", func(t *testing.T) {
		fake := newFakeGateway()
		fake.models = []*types.Model{{ID: "m1", SupportsVision: true}, {ID: "m2"}}
		state := newTestState(t, fake, nil)
		snapshot := state.Snapshot()
		require.Equal(t, "m1", snapshot.SelectedModelID)
		require.Len(t, snapshot.Models, 2)
		require.False(t, snapshot.Loading)
	})

	t.Run("vision model not first", func(t *testing.T) {
		state := newTestState(t, newFakeGateway(), nil)
		require.Equal(t, "vision", state.Snapshot().SelectedModelID)
	})

	t.Run("falls back to first", func(t *testing.T) {
		fake := newFakeGateway()
		fake.models = []*types.Model{{ID: "a"}, {ID: "b"}}
		state := newTestState(t, fake, nil)
		require.Equal(t, "a", state.Snapshot().SelectedModelID)
	})

	t.Run("configured default", func(t *testing.T) {
		state := newTestState(t, newFakeGateway(), &Opts{DefaultModel: "text"})
		require.Equal(t, "text", state.Snapshot().SelectedModelID)
	})

	t.Run("configured default missing from catalog", func(t *testing.T) {
		state := newTestState(t, newFakeGateway(), &Opts{DefaultModel: "gone"})
		require.Equal(t, "vision", state.Snapshot().SelectedModelID)
	})

	t.Run("loads sessions", func(t *testing.T) {
		fake := newFakeGateway()
		fake.sessions = []*types.Chat{{ID: "old", Title: "Old chat"}}
		state := newTestState(t, fake, nil)
		snapshot := state.Snapshot()
		require.Len(t, snapshot.Chats, 1)
		require.Equal(t, "", snapshot.ActiveChatID)
	})

	t.Run("failure leaves state empty", func(t *testing.T) {
		fake := newFakeGateway()
		fake.listSessionsErr = &gateway.Error{Kind: gateway.KindServer, Status: 500}
		state := New(fake, &Opts{})
		defer state.Close()
		require.Error(t, state.Initialize(context.Background()))
		snapshot := state.Snapshot()
		require.Empty(t, snapshot.Models)
		require.Empty(t, snapshot.Chats)
		require.Equal(t, "", snapshot.SelectedModelID)
		require.Equal(t, "Server error. Please try again later.", snapshot.Error)
		require.False(t, snapshot.Loading)
	})

	t.Run("runs once", func(t *testing.T) {
		fake := newFakeGateway()
		state := newTestState(t, fake, nil)
		require.NoError(t, state.Initialize(context.Background()))
		require.ElementsMatch(t, []string{"ListModels", "ListSessions"}, fake.Calls())
	})
}

func TestCreateAndDeleteChat(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	ctx := context.Background()

	first, err := state.CreateChat(ctx)
	require.NoError(t, err)
	require.Equal(t, "vision", first.Model)
	second, err := state.CreateChat(ctx)
	require.NoError(t, err)

	snapshot := state.Snapshot()
	require.Equal(t, second.ID, snapshot.ActiveChatID)
	require.Equal(t, []string{second.ID, first.ID}, []string{snapshot.Chats[0].ID, snapshot.Chats[1].ID})
	requireActiveValid(t, snapshot)

	// Deleting an inactive chat keeps the active one.
	require.NoError(t, state.DeleteChat(ctx, first.ID))
	snapshot = state.Snapshot()
	require.Equal(t, second.ID, snapshot.ActiveChatID)
	require.Len(t, snapshot.Chats, 1)

	// Deleting the active chat clears the active pointer.
	require.NoError(t, state.DeleteChat(ctx, second.ID))
	snapshot = state.Snapshot()
	require.Equal(t, "", snapshot.ActiveChatID)
	require.Empty(t, snapshot.Chats)
	requireActiveValid(t, snapshot)
}

func TestCreateDeleteSequencesNeverDangle(t *testing.T) {
	state := newTestState(t, newFakeGateway(), nil)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 20; i++ {
		switch {
		case i%3 == 2 && len(ids) > 0:
			id := ids[(i*7)%len(ids)]
			require.NoError(t, state.DeleteChat(ctx, id))
			for j, other := range ids {
				if other == id {
					ids = append(ids[:j], ids[j+1:]...)
					break
				}
			}
		case i%5 == 4 && len(ids) > 0:
			require.NoError(t, state.SelectChat(ids[0]))
		default:
			chat, err := state.CreateChat(ctx)
			require.NoError(t, err)
			ids = append(ids, chat.ID)
		}
		requireActiveValid(t, state.Snapshot())
	}
}

func TestCreateChatFailure(t *testing.T) {
	fake := newFakeGateway()
	fake.createSessionErr = &gateway.Error{Kind: gateway.KindRateLimit, Status: 429}
	state := newTestState(t, fake, nil)

	_, err := state.CreateChat(context.Background())
	require.Error(t, err)
	snapshot := state.Snapshot()
	require.Empty(t, snapshot.Chats)
	require.Equal(t, "", snapshot.ActiveChatID)
	require.Equal(t, "The model is very busy right now. Please choose another model.", snapshot.Error)
}

func TestCreateChatWithoutModels(t *testing.T) {
	fake := newFakeGateway()
	fake.models = nil
	state := newTestState(t, fake, nil)

	_, err := state.CreateChat(context.Background())
	require.ErrorIs(t, err, ErrNoModel)
	require.NotContains(t, fake.Calls(), "CreateSession")
	require.Equal(t, "Please select a model.", state.Snapshot().Error)
}

func TestDeleteChatFailure(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	chat, err := state.CreateChat(context.Background())
	require.NoError(t, err)

	fake.deleteSessionErr = &gateway.Error{Kind: gateway.KindNetwork, Err: errors.New("refused")}
	require.Error(t, state.DeleteChat(context.Background(), chat.ID))
	snapshot := state.Snapshot()
	require.Len(t, snapshot.Chats, 1)
	require.Equal(t, chat.ID, snapshot.ActiveChatID)
	require.NotEmpty(t, snapshot.Error)
}

func TestSelect(t *testing.T) {
	state := newTestState(t, newFakeGateway(), nil)
	chat, err := state.CreateChat(context.Background())
	require.NoError(t, err)

	require.NoError(t, state.SelectChat(""))
	require.Equal(t, "", state.Snapshot().ActiveChatID)
	require.ErrorIs(t, state.SelectChat("missing"), ErrUnknownChat)
	require.NoError(t, state.SelectChat(chat.ID))
	require.Equal(t, chat.ID, state.Snapshot().ActiveChatID)

	require.NoError(t, state.SelectModel("text"))
	require.Equal(t, "text", state.Snapshot().SelectedModelID)
	require.ErrorIs(t, state.SelectModel("missing"), ErrUnknownModel)
	require.Equal(t, "text", state.Snapshot().SelectedModelID)
}

func TestDraftAndError(t *testing.T) {
	fake := newFakeGateway()
	fake.models = nil
	state := newTestState(t, fake, nil)

	state.SetDraft("hello")
	require.Equal(t, "hello", state.Snapshot().Draft)

	_, err := state.CreateChat(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, state.Snapshot().Error)
	state.ClearError()
	require.Equal(t, "", state.Snapshot().Error)
	state.ClearError()
	require.Equal(t, "", state.Snapshot().Error)
}

func TestSnapshotIsACopy(t *testing.T) {
	state := newTestState(t, newFakeGateway(), nil)
	_, err := state.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)

	snapshot := state.Snapshot()
	snapshot.Chats[0].Messages[0].Content = "changed"
	snapshot.Chats[0].Messages = nil
	snapshot.Models[0].Name = "changed"

	fresh := state.Snapshot()
	require.Equal(t, "hello", fresh.Chats[0].Messages[0].Content)
	require.Equal(t, "Text only", fresh.Models[0].Name)
}

func TestVisionModels(t *testing.T) {
	fake := newFakeGateway()
	fake.visionModels = []*types.Model{{ID: "remote", SupportsVision: true}}
	state := newTestState(t, fake, nil)
	ctx := context.Background()

	models := state.VisionModels(ctx)
	require.Len(t, models, 1)
	require.Equal(t, "remote", models[0].ID)

	fake.listVisionErr = errors.New("down")
	models = state.VisionModels(ctx)
	require.Len(t, models, 1)
	require.Equal(t, "vision", models[0].ID)
}

func TestSupportsVision(t *testing.T) {
	fake := newFakeGateway()
	state := newTestState(t, fake, nil)
	ctx := context.Background()

	require.True(t, state.SupportsVision(ctx, "vision"))
	require.NotContains(t, fake.Calls(), "SupportsVision")
	require.False(t, state.SupportsVision(ctx, "text"))
	fake.supportsVision = true
	require.True(t, state.SupportsVision(ctx, "unknown"))
}

func TestOnChange(t *testing.T) {
	var mutex sync.Mutex
	changes := 0
	state := New(newFakeGateway(), &Opts{OnChange: func() {
		mutex.Lock()
		defer mutex.Unlock()
		changes++
	}})
	defer state.Close()
	require.NoError(t, state.Initialize(context.Background()))
	state.SetDraft("x")
	mutex.Lock()
	defer mutex.Unlock()
	require.Greater(t, changes, 1)
}

func TestClose(t *testing.T) {
	blocking := &blockingGateway{fakeGateway: newFakeGateway(), started: make(chan struct{})}
	state := New(blocking, &Opts{})
	require.NoError(t, state.Initialize(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := state.CreateChat(context.Background())
		done <- err
	}()
	<-blocking.started
	state.Close()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, strings.Contains(state.Snapshot().Error, "cancelled"))
}

// blockingGateway blocks CreateSession until its context is done.
type blockingGateway struct {
	*fakeGateway
	startOnce sync.Once
	started   chan struct{}
}

func (b *blockingGateway) CreateSession(ctx context.Context, userID, modelID string) (*types.Chat, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}
