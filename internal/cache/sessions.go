package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/langchou/carshare/internal/models"
	"github.com/langchou/carshare/internal/session"
)

const sessionsKey = "carshare:sessions:all"

// SessionStore 全量行程快照，实现 session.Cache
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore 创建快照缓存，ttl 为 0 时不过期
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

var _ session.Cache = (*SessionStore)(nil)

// Get 读取快照，不存在时返回 session.ErrCacheMiss
func (s *SessionStore) Get(ctx context.Context) ([]models.Session, error) {
	data, err := s.client.Get(ctx, sessionsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get sessions snapshot: %w", err)
	}
	return decodeSessions(data)
}

// Set 写入快照
func (s *SessionStore) Set(ctx context.Context, sessions []models.Session) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionsKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set sessions snapshot: %w", err)
	}
	return nil
}

// Invalidate 删除快照（开始/结束行程后调用）
func (s *SessionStore) Invalidate(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionsKey).Err(); err != nil {
		return fmt.Errorf("invalidate sessions snapshot: %w", err)
	}
	return nil
}

func encodeSessions(sessions []models.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []models.Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return nil, fmt.Errorf("encode sessions: %w", err)
	}
	return data, nil
}

func decodeSessions(data []byte) ([]models.Session, error) {
	var sessions []models.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}
