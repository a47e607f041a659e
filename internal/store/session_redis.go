package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// RedisSessionKeyPrefix namespaces session keys.
const RedisSessionKeyPrefix = "warfarinbot:session:"

// RedisSessionStore keeps sessions as JSON values in Redis. With a non-zero ttl an abandoned
// session expires ttl after its last update; zero keeps sessions until completed or restarted.
type RedisSessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// Compile-time check that RedisSessionStore implements SessionStore.
var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore connects to the Redis server at url (redis://...).
func NewRedisSessionStore(ctx context.Context, url string, ttl time.Duration) (*RedisSessionStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		slog.Error("Redis ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("RedisSessionStore connected", "addr", opt.Addr, "db", opt.DB, "ttl", ttl)
	return &RedisSessionStore{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(userID string) string {
	return RedisSessionKeyPrefix + userID
}

func (s *RedisSessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}

	return decodeSession(userID, data), nil
}

// decodeSession never fails: a value that does not decode comes back with an empty step, which
// the dialogue treats like any other unknown step and discards.
func decodeSession(userID string, data []byte) *models.Session {
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("RedisSessionStore undecodable session", "userID", userID, "error", err)
		return &models.Session{UserID: userID}
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}
	if _, err := models.ParseStateType(string(sess.Step)); err != nil {
		slog.Warn("RedisSessionStore session in unknown step", "userID", userID, "step", sess.Step)
	}
	return &sess
}

func (s *RedisSessionStore) Put(ctx context.Context, session models.Session) error {
	if session.UserID == "" {
		return models.ErrEmptyUserID
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisSessionStore) Restart(ctx context.Context, userID string, flow models.FlowType, now time.Time) (models.Session, error) {
	sess := models.NewSession(userID, flow, now)
	// SET replaces any previous value atomically.
	if err := s.Put(ctx, sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// Close closes the underlying client.
func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
