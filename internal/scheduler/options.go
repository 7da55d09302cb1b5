package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrm-io/gocrm-ce/internal/cache"
	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/models"
)

type options struct {
	Logger      *log.Logger
	Accounts    mailAccountStore
	Users       userDirectory
	Factory     connector.Factory
	MailHandler connector.Handler
	Worker      massActionDrainer
	Status      *cache.StatusCache
	Cron        *cron.Cron
	Parser      cron.Parser
	Jobs        []*models.ScheduledJob
	Location    *time.Location
}

// Option applies configuration to the scheduler service.
type Option func(*options)

func defaultOptions() options {
	return options{Logger: log.Default(), Location: time.UTC}
}

// WithLogger injects a custom logger implementation.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithMailAccounts injects the store used to list and checkpoint mail accounts.
func WithMailAccounts(store mailAccountStore) Option {
	return func(o *options) {
		o.Accounts = store
	}
}

// WithUsers injects the directory used to resolve account ownership.
func WithUsers(users userDirectory) Option {
	return func(o *options) {
		o.Users = users
	}
}

// WithConnectorFactory replaces the default connector factory.
func WithConnectorFactory(f connector.Factory) Option {
	return func(o *options) {
		o.Factory = f
	}
}

// WithMailHandler sets the pipeline fetched messages are delivered to.
func WithMailHandler(h connector.Handler) Option {
	return func(o *options) {
		o.MailHandler = h
	}
}

// WithMassActionWorker attaches the queue worker drained by the scheduler.
func WithMassActionWorker(w massActionDrainer) Option {
	return func(o *options) {
		o.Worker = w
	}
}

// WithStatusCache enables best-effort poll status snapshots.
func WithStatusCache(c *cache.StatusCache) Option {
	return func(o *options) {
		o.Status = c
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithCronParser allows replacing the cron expression parser.
func WithCronParser(p cron.Parser) Option {
	return func(o *options) {
		o.Parser = p
	}
}

// WithJobs registers explicit job definitions instead of defaults.
func WithJobs(jobs []*models.ScheduledJob) Option {
	return func(o *options) {
		o.Jobs = jobs
	}
}

// WithLocation sets the scheduler timezone location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.Location = loc
	}
}
