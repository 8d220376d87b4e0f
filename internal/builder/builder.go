// Package builder assembles the server's dependency graph from configuration.
package builder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/park285/frostfury-server/internal/account"
	"github.com/park285/frostfury-server/internal/alliance"
	"github.com/park285/frostfury-server/internal/config"
	"github.com/park285/frostfury-server/internal/events"
	"github.com/park285/frostfury-server/internal/history"
	"github.com/park285/frostfury-server/internal/httpapi"
	"github.com/park285/frostfury-server/internal/jobs"
	"github.com/park285/frostfury-server/internal/msgcat"
	"github.com/park285/frostfury-server/internal/notify"
	"github.com/park285/frostfury-server/internal/obslog"
	"github.com/park285/frostfury-server/internal/pvp"
	"github.com/park285/frostfury-server/internal/store"
	"github.com/park285/frostfury-server/internal/treasury"
)

type Deps struct {
	Store     *store.Store
	History   history.Repository
	Hub       *events.Hub
	Push      *notify.PushNotifier
	Accounts  *account.Service
	PvP       *pvp.Manager
	Alliances *alliance.Service
	Treasury  *treasury.Service
	Jobs      *jobs.Scheduler
	Handler   http.Handler
}

func New(cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	log := obslog.L()

	st, err := store.Open(cfg.RedisURL, cfg.StoreTimeout, cfg.StoreMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := openHistory(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = repo.Close()
		_ = st.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	hub := events.NewHub()
	fan := notify.Fanout{hub}
	var push *notify.PushNotifier
	if cfg.PushWebhookURL != "" {
		opts := []notify.Option{notify.WithTimeout(cfg.PushTimeout)}
		if key := cfg.PushAPIKey; key != "" {
			opts = append(opts, notify.WithHeaderProvider(func() map[string]string {
				return map[string]string{"X-Api-Key": key}
			}))
		}
		push = notify.NewPushNotifier(notify.NewWebhookClient(cfg.PushWebhookURL, opts...), cat, cfg.PushTimeout)
		fan = append(fan, push)
	} else {
		log.Info("push_disabled", zap.String("reason", "PUSH_WEBHOOK_URL not set"))
	}

	bal := cfg.Balance
	pvpMgr := pvp.NewManager(st, repo,
		pvp.WithBalance(bal), pvp.WithNotifier(fan), pvp.WithHistoryTimeout(cfg.HistoryTimeout))
	vault := treasury.NewService(st, repo,
		treasury.WithBalance(bal), treasury.WithNotifier(fan), treasury.WithHistoryTimeout(cfg.HistoryTimeout))
	d := &Deps{
		Store:     st,
		History:   repo,
		Hub:       hub,
		Push:      push,
		Accounts:  account.NewService(st, account.WithBalance(bal)),
		PvP:       pvpMgr,
		Alliances: alliance.NewService(st, alliance.WithBalance(bal), alliance.WithNotifier(fan)),
		Treasury:  vault,
	}

	d.Jobs, err = jobs.New(d.Treasury, d.Alliances, jobs.Schedules{
		Purge:     cfg.PurgeSchedule,
		Reconcile: cfg.ReconcileSchedule,
	})
	if err != nil {
		_ = repo.Close()
		_ = st.Close()
		return nil, err
	}

	if cfg.InternalToken == "" {
		log.Warn("ingestion_unauthenticated", zap.String("reason", "INTERNAL_TOKEN not set; any caller can push account snapshots"))
	}
	d.Handler = httpapi.NewRouter(httpapi.Deps{
		PvP:           d.PvP,
		Alliances:     d.Alliances,
		Treasury:      d.Treasury,
		Accounts:      d.Accounts,
		Events:        hub,
		Health:        st.Ping,
		InternalToken: cfg.InternalToken,
	})
	return d, nil
}

// openHistory uses Postgres when a DSN is configured and an in-process log otherwise.
func openHistory(ctx context.Context, dsn string) (history.Repository, error) {
	if dsn == "" {
		obslog.L().Warn("history_in_memory", zap.String("reason", "DATABASE_URL not set"))
		return history.NewMemoryRepository(), nil
	}
	pg, err := history.NewPostgresRepository(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return pg, nil
}

// Close waits for pending pushes and releases storage.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Jobs != nil {
		if err := d.Jobs.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Push != nil {
		d.Push.Wait()
	}
	if d.History != nil {
		errs = append(errs, d.History.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}
