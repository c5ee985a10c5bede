package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"sjsage522/specialsworker/internal/crawler"
	"sjsage522/specialsworker/logger"
	"sjsage522/specialsworker/pkg/errors"
	"sjsage522/specialsworker/services/publisher"
)

// Runner performs one crawl
type Runner interface {
	Run(ctx context.Context) (*crawler.Session, error)
}

// Worker runs crawls, once or on a cron schedule, and keeps the streams trimmed
type Worker struct {
	ctx       context.Context
	runner    Runner
	publisher publisher.Publisher
	schedule  string
	log       *logger.Logger
}

// NewWorker creates a new worker. An empty schedule means a single crawl.
func NewWorker(ctx context.Context, runner Runner, pub publisher.Publisher, schedule string) *Worker {
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &Worker{
		ctx:       ctx,
		runner:    runner,
		publisher: pub,
		schedule:  schedule,
		log:       logger.ForWorker(),
	}
}

// cronLogger routes cron's own messages to the worker log
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

// Start runs a crawl immediately. With a schedule it then keeps crawling on every
// tick until the worker context is done; a tick that fires while a crawl is still
// running is skipped.
func (w *Worker) Start() error {
	if w.schedule == "" {
		return w.RunOnce()
	}

	schedule, err := cron.ParseStandard(w.schedule)
	if err != nil {
		return errors.NewConfiguration(fmt.Sprintf("invalid schedule %q", w.schedule), err)
	}

	cronLog := cron.PrintfLogger(cronLogger{log: w.log})
	job := cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		w.RunOnce()
	}))

	c := cron.New(cron.WithLogger(cronLog))
	c.Schedule(schedule, job)
	c.Start()
	w.log.Info().Str("schedule", w.schedule).Msg("Scheduler started")

	job.Run()

	<-w.ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("Scheduler stopped")
	return nil
}

// RunOnce performs a single crawl followed by stream trimming
func (w *Worker) RunOnce() error {
	start := time.Now()

	session, err := w.runner.Run(w.ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Crawl interrupted")
	}

	if err := w.publisher.TrimStreams(); err != nil {
		logger.LogError("worker", errors.NewPublisher("worker", "trim streams", err), "Stream trimming failed")
	}

	event := w.log.Info().Dur("elapsed", time.Since(start))
	if session != nil {
		event = event.
			Str("run_id", session.RunID).
			Int("pages", session.PagesFetched).
			Int("deals", session.DealsReported)
	}
	event.Msg("Crawl run complete")

	return err
}
