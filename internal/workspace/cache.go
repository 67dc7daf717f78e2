package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// expirySkew is subtracted from the access expiry so cached tokens are
// never handed out moments before they lapse.
const expirySkew = 30 * time.Second

// TokenCache stores workspace session tokens in redis until shortly
// before they expire. A nil cache (or one built over a nil client)
// disables caching without changing behavior.
type TokenCache struct {
	rdb *redis.Client
	log *logrus.Entry
}

// NewTokenCache wraps a redis client. rdb may be nil.
func NewTokenCache(rdb *redis.Client, log *logrus.Entry) *TokenCache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TokenCache{rdb: rdb, log: log}
}

func cacheKey(workspace, userID string) string {
	return fmt.Sprintf("actioncreator:wstoken:%s:%s", workspace, userID)
}

// Get returns a cached token if present.
func (c *TokenCache) Get(ctx context.Context, workspace, userID string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	token, err := c.rdb.Get(ctx, cacheKey(workspace, userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("workspace token cache read failed")
		}
		return "", false
	}
	return token, true
}

// Put stores the session's access token until just before it expires.
// Sessions already at or past the skewed expiry are not cached.
func (c *TokenCache) Put(ctx context.Context, workspace, userID string, session *Session) {
	if c == nil || c.rdb == nil || session == nil {
		return
	}
	ttl := time.Until(session.AccessExpiry.Add(-expirySkew))
	if ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(workspace, userID), session.Access, ttl).Err(); err != nil {
		c.log.WithError(err).Warn("workspace token cache write failed")
	}
}
