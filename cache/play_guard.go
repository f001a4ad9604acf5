package cache

import (
	"context"
	"fmt"
	"time"

	"kgicweb/logger"

	"github.com/redis/go-redis/v9"
)

const (
	playGuardKey = "play_guard:%s:%s" // String: clientSession:podcastID
	// PlayGuardWindow 同一客户端对同一节目的重复上报在此窗口内被丢弃
	PlayGuardWindow = 10 * time.Second
)

// PlayGuard 播放次数上报去重
type PlayGuard struct {
	client *redis.Client
	window time.Duration
}

func NewPlayGuard(client *redis.Client) *PlayGuard {
	return &PlayGuard{client: client, window: PlayGuardWindow}
}

// Allow reports whether this increment should be counted. It fails open:
// when Redis is missing or errors, the increment is allowed.
func (g *PlayGuard) Allow(ctx context.Context, clientSession, podcastID string) bool {
	if clientSession == "" || g.client == nil {
		return true
	}

	key := fmt.Sprintf(playGuardKey, clientSession, podcastID)
	ok, err := g.client.SetNX(ctx, key, 1, g.window).Result()
	if err != nil {
		logger.Warn("Play guard unavailable, counting play",
			logger.String("podcastId", podcastID),
			logger.ErrorField(err))
		return true
	}
	if !ok {
		logger.Debug("重复的播放上报已忽略",
			logger.String("session", clientSession),
			logger.String("podcastId", podcastID))
	}
	return ok
}
