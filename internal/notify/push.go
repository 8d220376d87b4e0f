package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/msgcat"
	"github.com/park285/frostfury-server/internal/obslog"
)

type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// PushNotifier turns battle and gift events into push messages for the affected
// account. Delivery runs in the background and failures are only logged.
type PushNotifier struct {
	pusher  Pusher
	cat     *msgcat.Catalog
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPushNotifier(p Pusher, cat *msgcat.Catalog, timeout time.Duration) *PushNotifier {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushNotifier{pusher: p, cat: cat, timeout: timeout}
}

func (n *PushNotifier) Notify(ctx context.Context, ev Event) {
	if n == nil || n.pusher == nil {
		return
	}
	for _, msg := range n.messages(ev) {
		n.wg.Add(1)
		go func(msg PushMessage) {
			defer n.wg.Done()
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
			defer cancel()
			if err := n.pusher.Push(pctx, msg); err != nil {
				obslog.L().Warn("push_delivery_failed",
					zap.String("account_id", msg.AccountID),
					zap.String("kind", msg.Kind),
					zap.Error(err),
				)
			}
		}(msg)
	}
}

// Wait blocks until in-flight deliveries finish.
func (n *PushNotifier) Wait() { n.wg.Wait() }

func (n *PushNotifier) messages(ev Event) []PushMessage {
	switch ev.Type {
	case EventBattle:
		b := ev.Battle
		if b == nil {
			return nil
		}
		data := map[string]any{
			"Attacker":     nameOr(ev.AttackerName, b.AttackerID),
			"Wood":         b.StolenWood,
			"Meat":         b.StolenMeat,
			"RatingChange": signed(b.DefenderRatingChange),
			"ShieldHours":  int(ev.Shield.Hours()),
		}
		key, fallback := "push.battle.defended", "Your camp was attacked."
		if b.AttackerWon() {
			key, fallback = "push.battle.raided", "Your camp was raided."
		}
		return []PushMessage{{
			AccountID: b.DefenderID,
			Kind:      string(EventBattle),
			Title:     n.cat.RenderOr("push.battle.title", nil, "PvP"),
			Body:      n.cat.RenderOr(key, data, fallback),
			Data:      map[string]string{"battleId": b.ID},
		}}
	case EventGift:
		g := ev.Gift
		if g == nil {
			return nil
		}
		data := map[string]any{
			"From":        nameOr(ev.SenderName, g.FromID),
			"Message":     g.Message,
			"ExpiresDays": int(g.ExpiresAt.Sub(g.CreatedAt).Hours() / 24),
		}
		return []PushMessage{{
			AccountID: g.ToID,
			Kind:      string(EventGift),
			Title:     n.cat.RenderOr("push.gift.title", nil, "Gift"),
			Body:      n.cat.RenderOr("push.gift.received", data, "You received a gift."),
			Data:      map[string]string{"giftId": g.ID},
		}}
	case EventAlliance:
		c := ev.Alliance
		if c == nil {
			return nil
		}
		body := n.cat.RenderOr("push.alliance."+c.Action, map[string]any{"Name": nameOr(c.Name, c.AccountID)}, "")
		if body == "" {
			return nil
		}
		title := n.cat.RenderOr("push.alliance.title", nil, "Alliance")
		out := make([]PushMessage, 0, len(ev.Recipients))
		for _, id := range ev.Recipients {
			if id == c.AccountID {
				continue
			}
			out = append(out, PushMessage{
				AccountID: id,
				Kind:      string(EventAlliance),
				Title:     title,
				Body:      body,
				Data:      map[string]string{"allianceId": c.AllianceID, "action": c.Action},
			})
		}
		return out
	default:
		return nil
	}
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
