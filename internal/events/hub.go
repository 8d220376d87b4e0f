// Package events streams committed game events to connected clients over websocket.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
)

type subscriber struct {
	accountID string
	ch        chan notify.Event
}

// Hub keeps the live connections per account and implements notify.Notifier. A slow
// connection loses events instead of holding up the sender.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	buffer       int
	pingInterval time.Duration
	writeTimeout time.Duration
}

type Option func(*Hub)

func WithBuffer(n int) Option { return func(h *Hub) { h.buffer = n } }

func WithPingInterval(d time.Duration) Option { return func(h *Hub) { h.pingInterval = d } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:         make(map[string]map[*subscriber]struct{}),
		buffer:       16,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Notify(_ context.Context, ev notify.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ev.Recipients {
		for s := range h.subs[id] {
			select {
			case s.ch <- ev:
			default:
				obslog.L().Warn("event_feed_dropped", zap.String("account_id", id), zap.String("type", string(ev.Type)))
			}
		}
	}
}

func (h *Hub) subscribe(accountID string) (*subscriber, func()) {
	s := &subscriber{accountID: accountID, ch: make(chan notify.Event, h.buffer)}
	h.mu.Lock()
	if h.subs[accountID] == nil {
		h.subs[accountID] = make(map[*subscriber]struct{})
	}
	h.subs[accountID][s] = struct{}{}
	h.mu.Unlock()

	return s, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[accountID], s)
		if len(h.subs[accountID]) == 0 {
			delete(h.subs, accountID)
		}
	}
}

// Connections reports how many feeds the account has open.
func (h *Hub) Connections(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[accountID])
}

// Serve upgrades the request and streams the account's events until the client goes
// away, a write fails, or two pings in a row go unanswered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountID string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	sub, unsubscribe := h.subscribe(accountID)
	defer unsubscribe()
	obslog.L().Info("event_feed_open", zap.String("account_id", accountID))

	// the feed is one-way; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	missed := 0

	for {
		select {
		case <-ctx.Done():
			obslog.L().Info("event_feed_closed", zap.String("account_id", accountID))
			return nil
		case ev := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				missed = 0
				continue
			}
			if missed++; missed >= 2 {
				conn.Close(websocket.StatusGoingAway, "ping failure")
				return err
			}
		}
	}
}
