package prefhttp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/datatable/pkg/pref"
)

// WatchURL converts the HTTP base URL of a Handler to the watch URL for key.
func WatchURL(baseURL, key string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(key) + "/watch"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	logger *slog.Logger
	dialer *websocket.Dialer
}

// WithWatchLogger sets the logger for dropped messages. Default: slog.Default().
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = l
	}
}

// WithDialer sets the websocket dialer. Default: websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) WatchOption {
	return func(c *watchConfig) {
		c.dialer = d
	}
}

// Watch streams changes for ctl's key from the Handler at baseURL into
// ctl.ApplyRemoteJSON until ctx ends or the connection drops. Envelopes
// written at an older schema version are migrated by the controller. Removals
// are skipped: a reset elsewhere does not reset this controller.
//
// The returned error is nil when ctx was cancelled.
func Watch[V any](ctx context.Context, baseURL string, ctl *pref.Controller[V], header http.Header, opts ...WatchOption) error {
	cfg := watchConfig{
		logger: slog.Default(),
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	key := ctl.Key()
	conn, _, err := cfg.dialer.DialContext(ctx, WatchURL(baseURL, key), header)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var change Change
		if err := json.Unmarshal(data, &change); err != nil {
			cfg.logger.Debug("watch: bad change message",
				slog.String("key", key),
				slog.Any("error", err))
			continue
		}
		if change.Removed || change.Key != key {
			continue
		}
		env, err := pref.DecodeEnvelope[json.RawMessage](key, change.Data)
		if err != nil || env == nil {
			cfg.logger.Debug("watch: bad envelope",
				slog.String("key", key),
				slog.Any("error", err))
			continue
		}
		ctl.ApplyRemoteJSON(*env)
	}
}
