package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TLISentinel/internal/inbox"
	"TLISentinel/internal/model"
	"TLISentinel/internal/notifier"
	"TLISentinel/internal/recorder"
)

const (
	sendRetries  = 3
	refreshLimit = 20
)

// Pipeline turns email text or stored signals into analyses.
type Pipeline interface {
	Analyze(ctx context.Context, text string) ([]model.Analysis, error)
	Refresh(ctx context.Context, signals []model.ExtractedSignal) ([]model.Analysis, error)
}

// Mailbox is the source of analyst emails.
type Mailbox interface {
	FetchUnread(ctx context.Context) ([]inbox.Email, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

// Sender delivers formatted reports.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline Pipeline
	Mailbox  Mailbox // nil disables inbox polling
	Notifier Sender
	Recorder recorder.Recorder
	Ctx      context.Context

	logger zerolog.Logger
	pollMu sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p Pipeline, mb Mailbox, sender Sender, rec recorder.Recorder) *Scheduler {
	logger := log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Pipeline: p,
		Mailbox:  mb,
		Notifier: sender,
		Recorder: rec,
		Ctx:      ctx,
		logger:   logger,
	}
}

// RegisterAll registers the inbox poll and the recommendation refresh.
func (s *Scheduler) RegisterAll(pollCron, refreshCron string) error {
	if s.Mailbox != nil {
		if _, err := s.Cron.AddFunc(pollCron, s.pollInbox); err != nil {
			return fmt.Errorf("register poll task: %w", err)
		}
	} else {
		s.logger.Info().Msg("no inbox configured, poll task disabled")
	}
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunPollNow polls the inbox immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunPollNow() {
	if s.Mailbox == nil {
		return
	}
	s.pollInbox()
}

// pollInbox analyzes each unread email. A message is marked seen only after
// its report was delivered, so a failed delivery is retried on the next poll.
func (s *Scheduler) pollInbox() {
	if !s.pollMu.TryLock() {
		s.logger.Debug().Msg("poll already running, skipping")
		return
	}
	defer s.pollMu.Unlock()

	emails, err := s.Mailbox.FetchUnread(s.Ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch unread mail")
		return
	}
	s.logger.Info().Int("emails", len(emails)).Msg("polled inbox")

	for _, email := range emails {
		if s.Ctx.Err() != nil {
			return
		}
		l := s.logger.With().Uint32("uid", email.UID).Str("subject", email.Subject).Logger()

		analyses, err := s.Pipeline.Analyze(s.Ctx, email.Body)
		if err != nil {
			l.Error().Err(err).Msg("analyze email")
			return
		}
		if len(analyses) > 0 {
			s.record(analyses)
			if err := s.Notifier.SendWithRetry(s.Ctx, notifier.FormatReport(email.Subject, analyses), sendRetries); err != nil {
				l.Error().Err(err).Msg("send report")
				continue
			}
		} else {
			l.Info().Msg("no signals in email")
		}
		if err := s.Mailbox.MarkSeen(s.Ctx, email.UID); err != nil {
			l.Warn().Err(err).Msg("mark seen")
		}
	}
}

func (s *Scheduler) refreshTask() {
	report, err := s.refresh(s.Ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh")
		return
	}
	if report == "" {
		return
	}
	s.trySend(report)
}

// refresh re-reconciles the latest stored signal per symbol. It returns ""
// when nothing is stored.
func (s *Scheduler) refresh(ctx context.Context) (string, error) {
	signals, err := s.Recorder.LatestSignals(refreshLimit)
	if err != nil {
		return "", fmt.Errorf("load stored signals: %w", err)
	}
	if len(signals) == 0 {
		s.logger.Info().Msg("no stored signals to refresh")
		return "", nil
	}
	analyses, err := s.Pipeline.Refresh(ctx, signals)
	if err != nil {
		return "", err
	}
	s.record(analyses)
	return notifier.FormatReport("Refresh", analyses), nil
}

func (s *Scheduler) record(analyses []model.Analysis) {
	for i := range analyses {
		if err := s.Recorder.RecordAnalysis(&analyses[i]); err != nil {
			s.logger.Error().Err(err).Str("symbol", analyses[i].Signal.Symbol).Msg("record analysis")
		}
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.logger.Error().Err(err).Msg("send notification")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
