// Package poller implements the Poller Service: each tick it drains
// the Watermark Poller step (poll_new → insert_new → update_watermark),
// fans the claimable backlog out across N Inbox Workers, and runs the
// Reclaimer every ReclaimEvery ticks. Shutdown is cooperative: the
// caller cancels the context and Run returns once the in-flight tick
// finishes.
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/metrics"
	"github.com/svcops/intake-pipeline/internal/model"
	"github.com/svcops/intake-pipeline/internal/reclaimer"
	"github.com/svcops/intake-pipeline/internal/worker"
)

// Config mirrors the config.Poller/config.Inbox knobs this service consumes.
type Config struct {
	IntervalSeconds int
	BatchSize       int
	ReclaimEvery    int
	Workers         int

	StaleLockMinutes int
	MaxAttempts      int
}

// Service owns the poll ticker, the Watermark Poller step, a fixed
// pool of Inbox Workers, and the Reclaimer: one process orchestrates
// one or more Inbox Workers plus the Reclaimer on a timer.
type Service struct {
	store     *inboxstore.Store
	workers   []*worker.Worker
	reclaimer *reclaimer.Reclaimer
	cfg       Config
	log       *logrus.Entry
	tickCount int
}

func New(store *inboxstore.Store, workers []*worker.Worker, rec *reclaimer.Reclaimer, cfg Config, log *logrus.Entry) *Service {
	return &Service{store: store, workers: workers, reclaimer: rec, cfg: cfg, log: log}
}

// Run blocks, ticking every cfg.IntervalSeconds until ctx is
// cancelled. A plain time.Ticker is enough here rather than a cron
// library, since the interval is fixed and configured once at startup.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("poller service stopping on context cancellation")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.WithError(err).Error("poller tick failed")
			}
		}
	}
}

// Tick runs one poll/drain/fan-out/reclaim cycle. Exported so it can be
// driven directly from tests without waiting on the ticker.
func (s *Service) Tick(ctx context.Context) error {
	if err := s.drainWatermark(ctx); err != nil {
		s.log.WithError(err).Error("watermark drain failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			_, err := w.RunBatch(gctx, s.cfg.BatchSize)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Warn("one or more workers ended their batch with an error")
	}

	s.tickCount++
	if s.cfg.ReclaimEvery > 0 && s.tickCount%s.cfg.ReclaimEvery == 0 {
		if err := s.reclaimer.Sweep(ctx, s.cfg.StaleLockMinutes, s.cfg.MaxAttempts, s.cfg.BatchSize); err != nil {
			s.log.WithError(err).Error("reclaimer sweep failed")
		}
	}
	return nil
}

// drainWatermark implements the Watermark Poller: poll undeleted
// source rows past the stored watermark, insert_new each (idempotent
// on message_id), and advance the watermark past every scanned row
// whether or not it parsed, favoring visibility (RejectedShapeRows)
// over indefinitely re-polling a malformed row.
func (s *Service) drainWatermark(ctx context.Context) error {
	w, err := s.store.GetWatermark(ctx)
	if err != nil {
		return err
	}

	metrics.PollBatches.Inc()
	rows, err := s.store.PollNew(ctx, w, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	metrics.PolledRows.Add(float64(len(rows)))
	if len(rows) == 0 {
		return nil
	}

	next := w
	for _, msg := range rows {
		next = next.Max(model.Watermark{LastCreatedAt: msg.CreatedAt, LastMessageID: msg.MessageID})

		if _, err := model.ParsePayload(msg.Payload); err != nil {
			metrics.RejectedShapeRows.Inc()
			s.log.WithFields(logrus.Fields{
				"message_id": msg.MessageID,
				"error":      err,
			}).Warn("source row failed the payload-shape filter; watermark still advances past it")
			continue
		}

		if _, _, err := s.store.InsertNew(ctx, msg); err != nil {
			s.log.WithError(err).WithField("message_id", msg.MessageID).Error("failed to insert inbox row for polled message")
		}
	}

	return s.store.UpdateWatermark(ctx, next)
}
