package siteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"kgicweb/logger"
)

// PlayCountUpdate is pushed by the site after every counted play.
type PlayCountUpdate struct {
	ID        string `json:"id"`
	PlayCount int64  `json:"playCount"`
}

func (c *Client) playsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws/plays"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws/plays"
	}
	return c.baseURL + "/ws/plays"
}

// SubscribePlays delivers play count updates to fn until ctx is done or the
// connection drops. Malformed frames are skipped.
func (c *Client) SubscribePlays(ctx context.Context, fn func(PlayCountUpdate)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.playsURL(), nil)
	if err != nil {
		return fmt.Errorf("连接播放通知失败: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("播放通知连接断开: %w", err)
		}

		var update PlayCountUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			logger.Debug("[siteapi] 忽略无效通知", logger.ErrorField(err))
			continue
		}
		fn(update)
	}
}
