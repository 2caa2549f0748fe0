// Package chat owns the client-side state of the chat application: the
// chats of the user, the active chat, the model catalog and the composer.
// The presentation layer reads snapshots and drives the state through
// intents.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// Gateway to the chat backend.
type Gateway interface {
	ListModels(ctx context.Context) ([]*types.Model, error)
	ListVisionModels(ctx context.Context) ([]*types.Model, error)
	SupportsVision(ctx context.Context, modelID string) bool
	CreateSession(ctx context.Context, userID, modelID string) (*types.Chat, error)
	ListSessions(ctx context.Context, userID string) ([]*types.Chat, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	SendMessage(ctx context.Context, request *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error)
	StreamMessage(ctx context.Context, request *gateway.SendMessageRequest) (gateway.Stream, error)
}

// Opts for the state.
type Opts struct {
	// User owning the chats.
	UserID string
	// Model selected after initialization when present in the catalog.
	DefaultModel string
	// Timeout applied to non-streaming backend calls. Zero disables it.
	Timeout time.Duration
	// Called after every change to the state, from the goroutine that made the change.
	OnChange func()
}

// Snapshot is a copy of the state. It shares nothing with the state.
type Snapshot struct {
	Chats           []*types.Chat
	ActiveChatID    string
	Models          []*types.Model
	SelectedModelID string
	Loading         bool
	Draft           string
	// User facing description of the latest failure.
	Error string
	// Partial assistant reply of the active chat while it is streamed.
	PendingReply string
}

// ActiveChat returns the active chat or nil.
func (s *Snapshot) ActiveChat() *types.Chat {
	return findChat(s.Chats, s.ActiveChatID)
}

// SelectedModel returns the selected model or nil.
func (s *Snapshot) SelectedModel() *types.Model {
	return findModel(s.Models, s.SelectedModelID)
}

// State of the chat application. All methods are safe for concurrent use.
type State struct {
	gateway Gateway
	opts    *Opts

	initOnce    sync.Once
	closeCtx    context.Context
	closeCancel context.CancelFunc

	mutex           sync.Mutex
	chats           []*types.Chat
	activeChatID    string
	models          []*types.Model
	selectedModelID string
	inflight        int
	draft           string
	err             string
	pendingReplies  map[string]string
	// Serializes sends within one chat.
	chatIDToSendMutex map[string]*sync.Mutex
}

// New instantiates and returns a new state.
func New(gateway Gateway, opts *Opts) *State {
	if opts == nil {
		opts = &Opts{}
	}
	closeCtx, closeCancel := context.WithCancel(context.Background())
	return &State{
		gateway:           gateway,
		opts:              opts,
		closeCtx:          closeCtx,
		closeCancel:       closeCancel,
		pendingReplies:    map[string]string{},
		chatIDToSendMutex: map[string]*sync.Mutex{},
	}
}

// Close cancels every backend call in flight. The state must not be used afterwards.
func (s *State) Close() {
	s.closeCancel()
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() *Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snapshot := &Snapshot{
		Chats:           make([]*types.Chat, 0, len(s.chats)),
		ActiveChatID:    s.activeChatID,
		Models:          make([]*types.Model, 0, len(s.models)),
		SelectedModelID: s.selectedModelID,
		Loading:         s.inflight > 0,
		Draft:           s.draft,
		Error:           s.err,
		PendingReply:    s.pendingReplies[s.activeChatID],
	}
	for _, chat := range s.chats {
		snapshot.Chats = append(snapshot.Chats, chat.Clone())
	}
	for _, model := range s.models {
		m := *model
		snapshot.Models = append(snapshot.Models, &m)
	}
	return snapshot
}

// callContext derives the context of a backend call. It is cancelled when the
// state is closed.
func (s *State) callContext(ctx context.Context, withTimeout bool) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if withTimeout && s.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(s.closeCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fail records the user facing description of err.
func (s *State) fail(operation string, err error) {
	debug.GetLogger().Warn("chat operation failed", "operation", operation, "error", err)
	s.mutex.Lock()
	s.err = Describe(err)
	s.mutex.Unlock()
	s.notify()
}

func (s *State) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

// defaultModelLocked returns the model to select when none is: the
// configured default, else the first vision-capable model, else the first.
func (s *State) defaultModelLocked() *types.Model {
	if model := findModel(s.models, s.opts.DefaultModel); model != nil {
		return model
	}
	for _, model := range s.models {
		if model.SupportsVision {
			return model
		}
	}
	if len(s.models) > 0 {
		return s.models[0]
	}
	return nil
}

// resolveModel returns the selected model, selecting the default one if none is.
func (s *State) resolveModel() (*types.Model, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if model := findModel(s.models, s.selectedModelID); model != nil {
		return model, nil
	}
	model := s.defaultModelLocked()
	if model == nil {
		return nil, ErrNoModel
	}
	s.selectedModelID = model.ID
	return model, nil
}

func (s *State) sendMutex(chatID string) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	mutex, ok := s.chatIDToSendMutex[chatID]
	if !ok {
		mutex = &sync.Mutex{}
		s.chatIDToSendMutex[chatID] = mutex
	}
	return mutex
}

func findChat(chats []*types.Chat, id string) *types.Chat {
	if id == "" {
		return nil
	}
	for _, chat := range chats {
		if chat.ID == id {
			return chat
		}
	}
	return nil
}

func findModel(models []*types.Model, id string) *types.Model {
	if id == "" {
		return nil
	}
	for _, model := range models {
		if model.ID == id {
			return model
		}
	}
	return nil
}
