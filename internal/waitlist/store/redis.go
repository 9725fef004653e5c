package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"waitlist/internal/waitlist/models"
	id "waitlist/pkg/domain"
	"waitlist/pkg/platform/sentinel"
)

const sessionKeyPrefix = "waitlist:session:"

// Redis stores sessions as JSON under a key whose TTL matches the session
// deadline, so abandoned sessions disappear without a sweeper. Updates use
// WATCH/MULTI and retry a bounded number of times when another writer wins.
type Redis struct {
	client     *redis.Client
	maxRetries int
	now        func() time.Time
	conflicts  prometheus.Counter
}

type RedisOption func(*Redis)

// WithMaxRetries bounds optimistic retries per Update.
func WithMaxRetries(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithRedisClock overrides time.Now for TTL computation.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		r.now = now
	}
}

// WithRegisterer counts lost WATCH races on reg.
func WithRegisterer(reg prometheus.Registerer) RedisOption {
	return func(r *Redis) {
		if reg == nil {
			return
		}
		r.conflicts = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "waitlist_session_update_conflicts_total",
			Help: "Optimistic update attempts on Redis sessions that lost a WATCH race",
		})
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, maxRetries: 3, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (r *Redis) ttl(session *models.Session) time.Duration {
	return session.ExpiresAt.Sub(r.now())
}

func (r *Redis) Create(ctx context.Context, session *models.Session) error {
	ttl := r.ttl(session)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired: %w", session.ID, sentinel.ErrConflict)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return unavailable("create session", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	return nil
}

func (r *Redis) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}
	return decodeSession(raw)
}

func (r *Redis) Update(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error) {
	key := sessionKey(sessionID)
	var updated *models.Session

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return unavailable("get session", err)
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		ttl := r.ttl(session)
		if ttl <= 0 {
			return sentinel.ErrNotFound
		}
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = session
		return nil
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			if r.conflicts != nil {
				r.conflicts.Inc()
			}
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, unavailable("update session", err)
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update session %s: %w", sessionID, sentinel.ErrConflict)
}

func (r *Redis) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

func decodeSession(raw []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
