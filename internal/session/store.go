// Package session keeps conversation state in redis between turns and makes
// sure a session never resolves two turns at once.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hajj-assistant/internal/common/logger"
	"hajj-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTurnInProgress = errors.New("turn in progress")
	ErrConflict       = errors.New("session changed concurrently")
)

// releaseScript deletes the in-flight marker only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	TTL     time.Duration
	LockTTL time.Duration
	Prefix  string
}

func DefaultConfig() Config {
	return Config{TTL: 30 * time.Minute, LockTTL: 30 * time.Second, Prefix: "session"}
}

type Store struct {
	rdb    *redis.Client
	cfg    Config
	now    func() time.Time
	logger logger.Logger
}

func NewStore(rdb *redis.Client, cfg Config, log logger.Logger) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	return &Store{
		rdb:    rdb,
		cfg:    cfg,
		now:    time.Now,
		logger: log.With(map[string]interface{}{"component": "session"}),
	}
}

func (s *Store) key(id string) string     { return fmt.Sprintf("%s:%s", s.cfg.Prefix, id) }
func (s *Store) lockKey(id string) string { return fmt.Sprintf("%s:%s:inflight", s.cfg.Prefix, id) }

// Acquire marks a turn in flight for id. It never waits: if another turn
// holds the marker it returns ErrTurnInProgress. The returned release is
// safe to call after the marker expired.
func (s *Store) Acquire(ctx context.Context, id string) (release func(), err error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, s.lockKey(id), token, s.cfg.LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mark turn in flight: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrTurnInProgress, id)
	}

	return func() {
		// the turn's own context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, s.rdb, []string{s.lockKey(id)}, token).Err(); err != nil {
			s.logger.Warn("failed to release in-flight marker", map[string]interface{}{
				"sessionId": id,
				"error":     err.Error(),
			})
		}
	}, nil
}

// Load returns the stored session, or a fresh one when none exists or the
// stored one expired.
func (s *Store) Load(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.fresh(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("discarding unreadable session", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		return s.fresh(id), nil
	}
	if sess.IsExpired() {
		return s.fresh(id), nil
	}
	sess.State = sess.State.Normalized()
	return &sess, nil
}

func (s *Store) fresh(id string) *models.Session {
	now := s.now().UTC()
	return &models.Session{
		ID:           id,
		State:        models.NewConversationState(),
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.cfg.TTL),
	}
}

// Save writes sess if the stored state is still at expectedTurn. A missing
// record counts as turn 0. Anything else is ErrConflict.
func (s *Store) Save(ctx context.Context, sess *models.Session, expectedTurn int) error {
	key := s.key(sess.ID)
	sess.Touch(s.now().UTC(), s.cfg.TTL)
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedTurn(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != expectedTurn {
			return fmt.Errorf("%w: stored turn %d, expected %d", ErrConflict, stored, expectedTurn)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.cfg.TTL)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", ErrConflict, sess.ID)
	}
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return err
}

func storedTurn(ctx context.Context, tx *redis.Tx, key string) (int, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil || sess.IsExpired() {
		return 0, nil
	}
	return sess.State.Turn, nil
}

// Delete forgets a session and any in-flight marker.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id), s.lockKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("Session deleted", map[string]interface{}{"sessionId": id})
	return nil
}

var _ models.SessionRepository = (*Store)(nil)
