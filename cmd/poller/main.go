// Command poller is the process entrypoint: parse configuration,
// wire every external collaborator, and run the Poller Service until
// SIGINT/SIGTERM, with a go-flags Args struct driving a single
// long-running service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	flags "github.com/jessevdk/go-flags"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/blobstore"
	"github.com/svcops/intake-pipeline/internal/casestore"
	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/config"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/metrics"
	"github.com/svcops/intake-pipeline/internal/obslog"
	"github.com/svcops/intake-pipeline/internal/ocr"
	"github.com/svcops/intake-pipeline/internal/pdfwork"
	"github.com/svcops/intake-pipeline/internal/poller"
	"github.com/svcops/intake-pipeline/internal/processor"
	"github.com/svcops/intake-pipeline/internal/reclaimer"
	"github.com/svcops/intake-pipeline/internal/worker"
)

func main() {
	var args config.Args
	parser := flags.NewParser(&args, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log := obslog.New(args.Log.Level, args.Log.Text)
	entry := log.WithField("component", "poller")

	if err := run(context.Background(), args, entry); err != nil {
		entry.WithError(err).Fatal("poller exited with error")
	}
}

func run(ctx context.Context, args config.Args, log *logrus.Entry) error {
	db, err := sql.Open("pgx", args.DB.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(args.DB.PoolSize + args.DB.MaxOverflow)
	db.SetConnMaxLifetime(time.Duration(args.DB.PoolRecycleSecs) * time.Second)

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("new gcs client: %w", err)
	}
	defer gcsClient.Close()

	blob, err := blobstore.NewGCSClient(gcsClient, args.Blob.SourceContainer, args.Blob.DestContainer, args.Blob.TempDir, args.Blob.MaxRetries, log)
	if err != nil {
		return fmt.Errorf("new blob client: %w", err)
	}

	ocrClient := ocr.NewClient(ocr.Config{
		Endpoint:       args.OCR.Endpoint,
		RequestTimeout: time.Duration(args.OCR.RequestTimeoutSeconds) * time.Second,
		MaxRetries:     args.OCR.MaxRetries,
	})

	clk := clock.RealClock{}
	dialect := inboxstore.Postgres{}
	inbox := inboxstore.New(db, dialect, clk, log)
	statusWriter := inboxstore.NewStatusWriter(db, dialect, clk, log)
	cases := casestore.New(db, dialect, clk, log)

	ocrCfg := processor.OCRConfig{
		MaxPagesPerDoc:             args.OCR.MaxPagesPerDoc,
		TotalAttemptsBudget:        args.OCR.TotalAttemptsBudget,
		StopAfterCoversheet:        args.OCR.StopAfterCoversheet,
		CoversheetConfidenceThresh: args.OCR.CoversheetConfidenceThresh,
		MinCoversheetFields:        args.OCR.MinCoversheetFields,
		DelayBetweenRequests:       time.Duration(args.OCR.DelayBetweenRequestsSeconds * float64(time.Second)),
	}
	proc := processor.New(cases, blob, pdfwork.NewMerger(), pdfwork.NewSplitter(), ocrClient, clk, log, ocrCfg, args.Blob.TempDir)

	interJobDelay := time.Duration(args.Backpressure.InterJobDelaySeconds * float64(time.Second))
	workers := make([]*worker.Worker, args.Poller.Workers)
	for i := range workers {
		id := fmt.Sprintf("worker-%d", i+1)
		workers[i] = worker.New(id, inbox, statusWriter, proc, log, args.Inbox.StaleLockMinutes, interJobDelay, args.Backpressure.PoolCriticalThreshold)
	}

	rec := reclaimer.New(inbox, statusWriter, log)

	pollerCfg := poller.Config{
		IntervalSeconds:  args.Poller.IntervalSeconds,
		BatchSize:        args.Poller.BatchSize,
		ReclaimEvery:     args.Poller.ReclaimEvery,
		Workers:          args.Poller.Workers,
		StaleLockMinutes: args.Inbox.StaleLockMinutes,
		MaxAttempts:      args.Inbox.MaxAttempts,
	}
	svc := poller.New(inbox, workers, rec, pollerCfg, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.Collectors()...)
	go serveMetrics(args.Metrics.ListenAddr, reg, log)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !args.Poller.Enabled {
		log.Info("poller disabled via config; idling until signalled")
		<-runCtx.Done()
		return nil
	}

	err = svc.Run(runCtx)
	if err != nil && runCtx.Err() != nil {
		log.Info("poller shut down cleanly on signal")
		return nil
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server stopped")
	}
}
