// Package bot wires transport, documents and services into the running
// bot: routing updates, executing admin commands, publishing
// announcements and answering read-receipt callbacks.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"classbot/internal/audit"
	"classbot/internal/config"
	"classbot/internal/docstore"
	"classbot/internal/services/announce"
	"classbot/internal/services/broadcast"
	"classbot/internal/services/receipt"
	"classbot/internal/services/retention"
	"classbot/internal/services/roster"
	"classbot/internal/status"
	"classbot/internal/transport"
	"classbot/pkg/logx"
)

type App struct {
	cfg *config.Config
	log logx.Logger

	adapter  transport.Adapter
	roster   *roster.Manager
	anns     *announce.Manager
	receipts *receipt.Manager
	sweeper  *retention.Sweeper
	caster   *broadcast.Service
	auditor  audit.Store
	statusv  *status.Server
	sched    *cron.Cron

	adminID       int64
	retentionDays int

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg *config.Config, adapter transport.Adapter, log logx.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	store := docstore.New(docstore.NewMutex(), log.With(logx.String("comp", "docstore")))
	subsPath := cfg.Storage.SubscribersPath()
	annPath := cfg.Storage.AnnouncementsPath()
	rcptPath := cfg.Storage.ReceiptsPath()

	days := cfg.Retention.Days
	if days <= 0 {
		days = retention.DefaultDays
	}

	pause, err := config.ParseDurationOrDefault(
		"broadcast.batch_pause", cfg.Broadcast.BatchPause, broadcast.DefaultBatchPause)
	if err != nil {
		return nil, err
	}
	busy, err := config.ParseDurationField("audit.busy_timeout", cfg.Audit.BusyTimeout)
	if err != nil {
		return nil, err
	}

	auditor, err := audit.Open(audit.Config{
		Driver:      cfg.Audit.Driver,
		Path:        cfg.Audit.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "audit")))
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	a := &App{
		cfg:           cfg,
		log:           log,
		adapter:       adapter,
		roster:        roster.New(store, subsPath, log.With(logx.String("comp", "roster"))),
		anns:          announce.New(store, annPath, log.With(logx.String("comp", "announce"))),
		receipts:      receipt.New(store, rcptPath, log.With(logx.String("comp", "receipt"))),
		sweeper:       retention.New(store, annPath, rcptPath, days, log.With(logx.String("comp", "retention"))),
		auditor:       auditor,
		adminID:       cfg.Telegram.AdminID,
		retentionDays: days,
	}
	a.caster = broadcast.New(adapter, broadcast.Config{
		BatchSize:  cfg.Broadcast.BatchSize,
		BatchPause: pause,
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, log.With(logx.String("comp", "broadcast")))
	a.statusv = status.NewServer(log.With(logx.String("comp", "status")), a.healthSnapshot)
	return a, nil
}

func (a *App) healthSnapshot(ctx context.Context) status.Health {
	return status.Health{
		Subscribers:   a.roster.Count(ctx),
		Announcements: a.anns.Count(ctx),
	}
}

// Start brings up the transport, the status endpoint and the scheduled
// sweep, then begins consuming updates. It does not block.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.updates = make(chan transport.Update, 256)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start transport: %w", err)
	}

	a.statusv.Start(status.Config{Enabled: a.cfg.Status.Enabled, Address: a.cfg.Status.Address})

	a.sched = cron.New()
	schedule := a.cfg.Retention.CronSchedule()
	if _, err := a.sched.AddFunc(schedule, func() { a.scheduledSweep(runCtx) }); err != nil {
		a.log.Warn("invalid sweep schedule, periodic sweep disabled",
			logx.String("schedule", schedule), logx.Err(err))
	}
	a.sched.Start()

	a.wg.Add(1)
	go a.consume(runCtx)

	if err := a.adapter.SetCommands(runCtx, botCommands()); err != nil {
		a.log.Warn("set commands failed", logx.Err(err))
	}

	a.log.Info("bot started",
		logx.Int64("admin_id", a.adminID), logx.Int("retention_days", a.retentionDays))
	return nil
}

// Stop shuts everything down in reverse order and waits for in-flight
// update handlers to drain.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	err := a.adapter.Stop(ctx)
	a.statusv.Stop(ctx)
	a.wg.Wait()
	if a.auditor != nil {
		if cerr := a.auditor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.log.Info("bot stopped")
	return err
}

func (a *App) consume(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						a.log.Error("update handler panicked", logx.Any("panic", r))
					}
				}()
				a.dispatch(ctx, up)
			}()
		}
	}
}

func (a *App) scheduledSweep(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	start := time.Now()
	removed, err := a.sweeper.Sweep(sctx)
	if err != nil {
		return
	}
	if removed > 0 {
		a.audit(audit.Entry{
			ActorID: a.adminID,
			Action:  "scheduled_sweep",
			OK:      removed,
			TookMS:  time.Since(start).Milliseconds(),
		})
	}
}

func (a *App) audit(e audit.Entry) {
	if a.auditor == nil {
		return
	}
	if err := a.auditor.Append(e); err != nil {
		a.log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}

func botCommands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "start", Description: "Subscribe to announcements"},
		{Command: "help", Description: "Show available commands"},
		{Command: "stats", Description: "Announcement statistics (admin)"},
		{Command: "broadcast", Description: "Broadcast a text announcement (admin)"},
		{Command: "cleanup", Description: "Remove old announcements (admin)"},
		{Command: "delete", Description: "Delete one announcement (admin)"},
		{Command: "subscribers", Description: "List subscribers (admin)"},
		{Command: "add", Description: "Add a student by id (admin)"},
		{Command: "remove", Description: "Remove a student by id (admin)"},
		{Command: "read", Description: "Read details for one announcement (admin)"},
		{Command: "read_all", Description: "Read summary for all announcements (admin)"},
	}
}
