package hooks

import (
	"context"
	"log"
	"strings"

	"github.com/gocrm-io/gocrm-ce/internal/mail"
	"github.com/gocrm-io/gocrm-ce/internal/mail/bounce"
	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
)

// Flag names attached to pre-fetch results, consumed by the persistence step.
const (
	FlagIsAutoReply   = "isAutoReply"
	FlagSkipAutoReply = "skipAutoReply"
)

// Result is the outcome of the pre-fetch hook for one message.
type Result struct {
	Skip  bool
	Flags map[string]bool
}

type bounceClassifier interface {
	Process(ctx context.Context, m *mail.Message) (*bounce.Result, error)
}

// BeforeFetch runs once per incoming message before it is persisted. Bounce
// messages are classified and skipped; everything else gets auto-reply
// advisory flags.
type BeforeFetch struct {
	bounces bounceClassifier
	logger  *log.Logger
}

func NewBeforeFetch(bounces bounceClassifier, logger *log.Logger) *BeforeFetch {
	return &BeforeFetch{bounces: bounces, logger: logger}
}

// Process classifies the message. It never returns an error: a bounce that
// cannot be classified is skipped rather than persisted as a normal email,
// and a malformed message never aborts the fetch cycle.
func (h *BeforeFetch) Process(ctx context.Context, account connector.Account, m *mail.Message) Result {
	if bounce.IsBounce(m) {
		result, err := h.bounces.Process(ctx, m)
		if err != nil {
			h.logf("before-fetch: account %s: bounce classification failed: %v", account.ID(), err)
			return Result{Skip: true}
		}
		if result != nil {
			return Result{Skip: true}
		}
		// Uncorrelated daemon mail falls through and is treated as a normal
		// message.
	}

	isAutoReply := h.isAutoReply(m)
	return Result{
		Flags: map[string]bool{
			FlagIsAutoReply:   isAutoReply,
			FlagSkipAutoReply: isAutoReply || h.suppressAutoReply(m),
		},
	}
}

func (h *BeforeFetch) isAutoReply(m *mail.Message) bool {
	if m.HasHeader("X-Autoreply") || m.HasHeader("X-Autorespond") {
		return true
	}
	if value := m.GetHeader("Auto-submitted"); value != "" && !strings.EqualFold(value, "no") {
		return true
	}
	return false
}

func (h *BeforeFetch) suppressAutoReply(m *mail.Message) bool {
	switch strings.ToLower(m.GetHeader("X-Auto-Response-Suppress")) {
	case "autoreply", "all":
		return true
	default:
		return false
	}
}

func (h *BeforeFetch) logf(format string, args ...any) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Printf(format, args...)
}
