package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

const (
	sessionPrefix   = "checkout:session:"
	reverifyZSet    = "payment:reverify"
	reverifyAttempt = "payment:reverify:attempts"
)

type Client struct {
	client *redis.Client
}

func NewClient(addr, password string, db int) *Client {
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// SessionStore keeps checkout-flow sessions as JSON values that expire with their TTL.
type SessionStore struct {
	c *Client
}

func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{c: c}
}

func (s *SessionStore) Put(ctx context.Context, session dompay.Session, ttl time.Duration) error {
	session.ExpiresAt = time.Now().Add(ttl).UTC()
	if err := s.c.SetJSON(ctx, sessionPrefix+session.Token, session, ttl); err != nil {
		return fmt.Errorf("redis put session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*dompay.Session, error) {
	var session dompay.Session
	if err := s.c.GetJSON(ctx, sessionPrefix+token, &session); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, dompay.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.c.Del(ctx, sessionPrefix+token)
}

// ReverifyQueue is a sorted set of transaction ids scored by due time in milliseconds,
// with the attempt number kept in a side hash.
type ReverifyQueue struct {
	c *Client
}

func NewReverifyQueue(c *Client) *ReverifyQueue {
	return &ReverifyQueue{c: c}
}

func (q *ReverifyQueue) Schedule(ctx context.Context, job dompay.ReverifyJob) error {
	_, err := q.c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, reverifyZSet, &redis.Z{Score: float64(job.DueAt.UnixMilli()), Member: job.TransactionID})
		p.HSet(ctx, reverifyAttempt, job.TransactionID, job.Attempt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis schedule reverify: %w", err)
	}
	return nil
}

// Due claims jobs with ZREM so concurrent pollers never run the same job twice.
func (q *ReverifyQueue) Due(ctx context.Context, now time.Time, limit int) ([]dompay.ReverifyJob, error) {
	members, err := q.c.client.ZRangeByScoreWithScores(ctx, reverifyZSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis due reverify: %w", err)
	}

	jobs := make([]dompay.ReverifyJob, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		removed, err := q.c.client.ZRem(ctx, reverifyZSet, id).Result()
		if err != nil {
			return jobs, fmt.Errorf("redis claim reverify: %w", err)
		}
		if removed == 0 {
			continue
		}
		attempt, err := q.c.client.HGet(ctx, reverifyAttempt, id).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return jobs, fmt.Errorf("redis reverify attempt: %w", err)
		}
		q.c.client.HDel(ctx, reverifyAttempt, id)
		jobs = append(jobs, dompay.ReverifyJob{
			TransactionID: id,
			Attempt:       attempt,
			DueAt:         time.UnixMilli(int64(m.Score)),
		})
	}
	return jobs, nil
}
