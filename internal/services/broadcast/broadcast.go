// Package broadcast fans an announcement out to every subscriber in
// fixed-size batches. Sends inside a batch run concurrently; batches
// are separated by a pause so the platform's flood limits are never
// brushed. A failed send is recorded and skipped, never retried.
package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"classbot/internal/transport"
	"classbot/pkg/logx"
)

const (
	DefaultBatchSize  = 20
	DefaultBatchPause = time.Second
)

type Config struct {
	BatchSize  int
	BatchPause time.Duration
	RatePerSec float64 // per-send rate limit; <=0 disables it
}

// Report summarizes one fan-out run.
type Report struct {
	Sent    int
	Failed  []int64 // recipients whose send errored, ascending
	Batches int
}

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, msg transport.Outgoing) (transport.MessageRef, error)
}

type Service struct {
	sender  Sender
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
}

func New(sender Sender, cfg Config, log logx.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.BatchSize)
	}
	return &Service{sender: sender, cfg: cfg, limiter: lim, log: log}
}

// Send delivers msg to every recipient. Recipients are processed in
// batches of cfg.BatchSize with cfg.BatchPause between batches. The
// returned report is complete even when ctx is cancelled mid-run: the
// remaining recipients are simply counted as failed.
func (s *Service) Send(ctx context.Context, recipients []int64, msg transport.Outgoing) Report {
	var (
		rep Report
		mu  sync.Mutex
	)

	for start := 0; start < len(recipients); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			rep.Failed = append(rep.Failed, recipients[start:]...)
			mu.Unlock()
			break
		}

		end := start + s.cfg.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]
		rep.Batches++

		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if err := s.deliver(ctx, id, msg); err != nil {
					s.log.Warn("send failed", logx.Int64("chat_id", id), logx.Err(err))
					mu.Lock()
					rep.Failed = append(rep.Failed, id)
					mu.Unlock()
					return
				}
				mu.Lock()
				rep.Sent++
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		if end < len(recipients) {
			select {
			case <-time.After(s.cfg.BatchPause):
			case <-ctx.Done():
			}
		}
	}

	sort.Slice(rep.Failed, func(i, j int) bool { return rep.Failed[i] < rep.Failed[j] })
	s.log.Info("broadcast finished",
		logx.Int("sent", rep.Sent), logx.Int("failed", len(rep.Failed)), logx.Int("batches", rep.Batches))
	return rep
}

func (s *Service) deliver(ctx context.Context, chatID int64, msg transport.Outgoing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err = s.sender.SendMessage(ctx, chatID, msg)
	return err
}
