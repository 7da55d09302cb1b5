// Package scheduler provides background job scheduling for mail fetching and
// queued mass actions.
package scheduler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gocrm-io/gocrm-ce/internal/cache"
	"github.com/gocrm-io/gocrm-ce/internal/mail/account"
	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/models"
)

func (s *Service) registerBuiltinHandlers() {
	s.RegisterHandler("mail.poll", s.handleMailPoll)
	s.RegisterHandler("massaction.process", s.handleMassActionProcess)
}

func (s *Service) handleMailPoll(ctx context.Context, job *models.ScheduledJob) error {
	s.logger.Printf("scheduler: mail poll starting")
	if s.accounts == nil {
		s.logger.Printf("scheduler: mail account store unavailable, skipping poll")
		return nil
	}
	if s.mailHandler == nil {
		s.logger.Printf("scheduler: mail handler unavailable, skipping poll")
		return nil
	}
	accounts, err := s.accounts.GetActiveAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		s.logger.Printf("scheduler: mail poll found no active accounts")
		return nil
	}
	stopTimer := s.startMailPollRun(len(accounts))
	defer stopTimer()

	limit := intFromConfig(job.Config, "max_accounts", 5)
	count := len(accounts)
	if limit > 0 && count > limit {
		count = limit
	}
	targets := s.selectPollAccounts(accounts, count)
	workers := intFromConfig(job.Config, "worker_count", 2)
	if workers <= 0 {
		workers = 1
	}
	portion := intFromConfig(job.Config, "portion_limit", 0)
	s.logger.Printf("scheduler: mail poll dispatching %d of %d account(s) with %d worker(s)", len(targets), len(accounts), workers)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var fetchErrs []error
	for _, model := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(model *models.MailAccount) {
			defer wg.Done()
			defer func() { <-sem }()

			acc, aerr := account.FromModel(ctx, model, s.users, s.accounts, portion)
			if aerr != nil {
				s.logger.Printf("scheduler: skipping account %s: %v", model.ID, aerr)
				errMu.Lock()
				fetchErrs = append(fetchErrs, aerr)
				errMu.Unlock()
				s.recordPollResult(ctx, model.ID, 0, aerr)
				return
			}
			fetcher, ferr := s.factory.FetcherFor(acc)
			if ferr != nil {
				s.logger.Printf("scheduler: no connector for account %s (%s): %v", model.ID, model.Security, ferr)
				errMu.Lock()
				fetchErrs = append(fetchErrs, ferr)
				errMu.Unlock()
				s.recordPollResult(ctx, model.ID, 0, ferr)
				return
			}

			counting := &countingHandler{inner: s.mailHandler}
			if err := fetcher.Fetch(ctx, acc, counting); err != nil {
				s.logger.Printf("scheduler: fetch error for account %s: %v", model.ID, err)
				errMu.Lock()
				fetchErrs = append(fetchErrs, err)
				errMu.Unlock()
				s.recordPollResult(ctx, model.ID, counting.count(), err)
				return
			}
			s.recordPollResult(ctx, model.ID, counting.count(), nil)
		}(model)
	}

	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(fetchErrs) > 0 {
		return errors.Join(fetchErrs...)
	}

	s.logger.Printf("scheduler: mail poll processed %d account(s)", len(targets))
	return nil
}

func (s *Service) handleMassActionProcess(ctx context.Context, job *models.ScheduledJob) error {
	if s.worker == nil {
		s.logger.Printf("scheduler: mass action worker unavailable, skipping")
		return nil
	}
	handled := s.worker.Drain(ctx)
	if handled > 0 {
		s.logger.Printf("scheduler: mass action queue drained %d record(s)", handled)
	}
	return ctx.Err()
}

func (s *Service) startMailPollRun(activeAccounts int) func() {
	if s.metrics == nil {
		return func() {}
	}
	return s.metrics.recordRun(activeAccounts)
}

func (s *Service) recordPollResult(ctx context.Context, accountID string, handled int, err error) {
	if s.metrics != nil {
		s.metrics.recordAccount(err == nil)
	}
	if s.status == nil {
		return
	}
	status := cache.PollStatus{
		AccountID: accountID,
		FetchedAt: s.now().UTC(),
		Handled:   handled,
	}
	if err != nil {
		status.Error = err.Error()
	}
	s.status.SetPollStatus(ctx, status)
}

// selectPollAccounts spreads large installations across cron ticks: each run
// resumes where the previous one left off instead of always fetching the same
// leading slice.
func (s *Service) selectPollAccounts(accounts []*models.MailAccount, count int) []*models.MailAccount {
	if len(accounts) == 0 || count <= 0 {
		return nil
	}
	total := len(accounts)
	if count > total {
		count = total
	}
	s.pollState.mu.Lock()
	defer s.pollState.mu.Unlock()

	start := s.pollState.nextIdx % total
	selected := make([]*models.MailAccount, 0, count)
	idx := start
	for len(selected) < count {
		selected = append(selected, accounts[idx])
		idx = (idx + 1) % total
	}
	s.pollState.nextIdx = idx
	return selected
}

// countingHandler wraps the pipeline so a poll cycle can report how many
// messages each account actually delivered.
type countingHandler struct {
	inner   connector.Handler
	handled atomic.Int64
}

func (h *countingHandler) Handle(ctx context.Context, acc connector.Account, msg *connector.FetchedMessage) error {
	if err := h.inner.Handle(ctx, acc, msg); err != nil {
		return err
	}
	h.handled.Add(1)
	return nil
}

func (h *countingHandler) count() int { return int(h.handled.Load()) }

func intFromConfig(cfg map[string]any, key string, fallback int) int {
	if cfg == nil {
		return fallback
	}
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func defaultJobs() []*models.ScheduledJob {
	return []*models.ScheduledJob{
		{
			Name:           "Mail Account Poller",
			Slug:           "mail-fetch",
			Handler:        "mail.poll",
			Schedule:       "*/2 * * * *",
			TimeoutSeconds: 300,
			Config: map[string]any{
				"max_accounts": 5,
				"worker_count": 2,
			},
		},
		{
			Name:           "Mass Action Queue",
			Slug:           "massaction-queue",
			Handler:        "massaction.process",
			Schedule:       "*/1 * * * *",
			TimeoutSeconds: 600,
			RunOnStartup:   true,
		},
	}
}

// DefaultJobs returns cloned built-in job definitions for display purposes.
func DefaultJobs() []*models.ScheduledJob {
	jobs := defaultJobs()
	out := make([]*models.ScheduledJob, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, job.Clone())
	}
	return out
}
