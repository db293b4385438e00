// Package archive persists finished games to redis: a JSON record per
// game with a TTL, a capped recent index, per-player indexes, and a
// pub/sub notification so other services can react to results.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/castlebay/arena/internal/obslog"
	"github.com/castlebay/arena/internal/session"
)

const (
	ttlGame     = 7 * 24 * time.Hour
	recentLimit = 100

	// ChannelFinished carries one JSON Record per finished game.
	ChannelFinished = "arena:games:finished"
)

var ErrNotFound = errors.New("archived game not found")

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyGame(id string) string     { return "arena:game:" + strings.TrimSpace(id) }
func (s *Store) keyRecent() string            { return "arena:games:recent" }
func (s *Store) keyByPlayer(id string) string { return "arena:games:player:" + strings.TrimSpace(id) }

// GameFinished stores the record and fans out the notification. It is
// the session.FinishedSink implementation.
func (s *Store) GameFinished(ctx context.Context, rec session.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyGame(rec.SessionID), raw, ttlGame).Err(); err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, s.keyRecent(), rec.SessionID).Err(); err != nil {
		return err
	}
	_ = s.rdb.LTrim(ctx, s.keyRecent(), 0, recentLimit-1).Err()

	for _, pid := range []string{rec.White.ID, rec.Black.ID} {
		if pid == "" {
			continue
		}
		if err := s.rdb.SAdd(ctx, s.keyByPlayer(pid), rec.SessionID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, s.keyByPlayer(pid), ttlGame).Err()
	}

	if err := s.rdb.Publish(ctx, ChannelFinished, raw).Err(); err != nil {
		obslog.L().Warn("archive_publish",
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
	}
	return nil
}

// Get loads one archived game by session id.
func (s *Store) Get(ctx context.Context, sessionID string) (*session.Record, error) {
	raw, err := s.rdb.Get(ctx, s.keyGame(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec session.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns the newest session ids, most recent first.
func (s *Store) Recent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 || n > recentLimit {
		n = recentLimit
	}
	return s.rdb.LRange(ctx, s.keyRecent(), 0, int64(n-1)).Result()
}

// ByPlayer returns the archived session ids a player took part in.
func (s *Store) ByPlayer(ctx context.Context, playerID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyByPlayer(playerID)).Result()
}
