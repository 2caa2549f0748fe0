package chat

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/types"
)

// Initialize fetches the model catalog and the chats of the user. Only the
// first call does any work; later calls return nil.
func (s *State) Initialize(ctx context.Context) error {
	var err error
	s.initOnce.Do(func() {
		err = s.initialize(ctx)
	})
	return err
}

func (s *State) initialize(ctx context.Context) error {
	s.setInflight(1)
	defer s.setInflight(-1)

	ctx, cancel := s.callContext(ctx, true)
	defer cancel()
	var models []*types.Model
	var chats []*types.Chat
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		models, err = s.gateway.ListModels(ctx)
		return err
	})
	eg.Go(func() error {
		var err error
		chats, err = s.gateway.ListSessions(ctx, s.opts.UserID)
		return err
	})
	if err := eg.Wait(); err != nil {
		err = errors.Wrap(err, "initializing")
		s.fail("initialize", err)
		return err
	}

	s.mutex.Lock()
	s.models = models
	s.chats = chats
	if findModel(s.models, s.selectedModelID) == nil {
		s.selectedModelID = ""
		if model := s.defaultModelLocked(); model != nil {
			s.selectedModelID = model.ID
		}
	}
	selectedModelID := s.selectedModelID
	s.mutex.Unlock()
	s.notify()

	debug.GetLogger().Info("chat state initialized", "models", len(models), "chats", len(chats), "selected_model", selectedModelID)
	return nil
}

func (s *State) setInflight(delta int) {
	s.mutex.Lock()
	s.inflight += delta
	s.mutex.Unlock()
	s.notify()
}
