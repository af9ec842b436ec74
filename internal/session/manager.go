package session

import (
	"context"
	"errors"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/core/pipeline"
	"hajj-assistant/internal/models"
)

type Resolver interface {
	Resolve(ctx context.Context, turn pipeline.Turn) (*pipeline.TurnResult, error)
}

// Manager runs turns against stored sessions: mark in flight, load,
// resolve, save, release.
type Manager struct {
	store    *Store
	resolver Resolver
	logger   logger.Logger
}

func NewManager(store *Store, resolver Resolver, log logger.Logger) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		logger:   log.With(map[string]interface{}{"component": "session"}),
	}
}

// Turn resolves text in session id. An abandoned turn saves nothing. A
// save that loses the race is logged and the reply is still returned.
func (m *Manager) Turn(ctx context.Context, id, text, audioTag string) (*pipeline.TurnResult, error) {
	release, err := m.store.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := sess.State.Turn

	res, err := m.resolver.Resolve(ctx, pipeline.Turn{
		Text:      text,
		State:     sess.State,
		AudioTag:  audioTag,
		SessionID: id,
	})
	if err != nil {
		return nil, err
	}

	if res.Outcome == pipeline.OutcomeFailed || res.Outcome == pipeline.OutcomeInvalid {
		return res, nil
	}

	sess.State = res.State
	if err := m.store.Save(ctx, sess, before); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		m.logger.Warn("session state not saved", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
	}
	return res, nil
}

// Reset drops the stored conversation for id.
func (m *Manager) Reset(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// State returns the current conversation state of id.
func (m *Manager) State(ctx context.Context, id string) (models.ConversationState, error) {
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return models.ConversationState{}, err
	}
	return sess.State, nil
}
