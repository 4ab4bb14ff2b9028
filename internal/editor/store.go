package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL 是编辑会话状态的滑动过期时间。
const DefaultSessionTTL = 12 * time.Hour

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// SessionStore 按 (用户, 简历) 保存折叠面板状态。
type SessionStore struct {
	client redisKV
	ttl    time.Duration
}

func NewSessionStore(client redisKV, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(userID, cvID uint) string {
	return fmt.Sprintf("editor:accordion:%d:%d", userID, cvID)
}

// Load 返回会话状态；尚无记录时返回初始状态。
func (s *SessionStore) Load(ctx context.Context, userID, cvID uint) (Accordion, error) {
	key := sessionKey(userID, cvID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewAccordion(), nil
	}
	if err != nil {
		return Accordion{}, fmt.Errorf("load accordion: %w", err)
	}
	var a Accordion
	if err := json.Unmarshal(raw, &a); err != nil {
		// 损坏的状态重置为初始状态
		return NewAccordion(), nil
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return a, nil
}

// Toggle 计算新状态并以一次 SET 写回，不存在可观察的中间状态。
func (s *SessionStore) Toggle(ctx context.Context, userID, cvID uint, section Section) (Accordion, error) {
	current, err := s.Load(ctx, userID, cvID)
	if err != nil {
		return Accordion{}, err
	}
	next := current.Toggle(section)
	data, err := json.Marshal(next)
	if err != nil {
		return Accordion{}, fmt.Errorf("encode accordion: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(userID, cvID), data, s.ttl).Err(); err != nil {
		return Accordion{}, fmt.Errorf("save accordion: %w", err)
	}
	return next, nil
}
