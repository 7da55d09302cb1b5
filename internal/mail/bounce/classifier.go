package bounce

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/gocrm-io/gocrm-ce/internal/mail"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

var (
	fromPattern      = regexp.MustCompile(`(?i)MAILER-DAEMON|POSTMASTER`)
	hardPattern      = regexp.MustCompile(`(?i)permanent[ ]*(error|failure)`)
	headerQidPattern = regexp.MustCompile(`X-Queue-Item-Id: ([a-z0-9-]+)`)
	toQidPattern     = regexp.MustCompile(`\+bounce-qid-([a-z0-9-]+)`)
)

// IsBounce reports whether the message looks like a delivery-failure
// notification, judged by the From header alone.
func IsBounce(m *mail.Message) bool {
	return fromPattern.MatchString(m.GetHeader("From"))
}

// Result describes one recognized, correlated bounce.
type Result struct {
	IsHard      bool
	QueueItemID string
}

type queueItemStore interface {
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)
}

type massEmailStore interface {
	GetByID(ctx context.Context, id string) (*models.MassEmail, error)
}

type targetResolver interface {
	Resolve(ctx context.Context, entityType, id string) (*repository.EntityRef, error)
}

type addressStore interface {
	GetByAddress(ctx context.Context, address string) (*models.EmailAddress, error)
	MarkInvalid(ctx context.Context, id string) error
}

type campaignLogger interface {
	LogBounced(ctx context.Context, campaignID string, item *models.QueueItem, target *repository.EntityRef, address string, isHard bool) error
}

// Classifier recognizes bounce messages, correlates them back to the queue
// item that produced the original send, and applies the campaign side effects.
type Classifier struct {
	queueItems queueItemStore
	massEmails massEmailStore
	targets    targetResolver
	addresses  addressStore
	campaigns  campaignLogger
	logger     *log.Logger
}

func NewClassifier(queueItems queueItemStore, massEmails massEmailStore, targets targetResolver, addresses addressStore, campaigns campaignLogger, logger *log.Logger) *Classifier {
	return &Classifier{
		queueItems: queueItems,
		massEmails: massEmails,
		targets:    targets,
		addresses:  addresses,
		campaigns:  campaigns,
		logger:     logger,
	}
}

// Process classifies the message and applies side effects. A nil Result with a
// nil error means the message carried no queue-item token and is not
// actionable; the caller decides what to do with it. Errors are returned, not
// swallowed — the pre-fetch hook owns the failure policy.
func (c *Classifier) Process(ctx context.Context, m *mail.Message) (*Result, error) {
	token, err := c.extractToken(m)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	content, err := m.RawContent()
	if err != nil {
		return nil, fmt.Errorf("failed to read bounce content: %w", err)
	}
	isHard := hardPattern.MatchString(content)

	item, err := c.queueItems.GetByID(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.logf("bounce: queue item %s not found", token)
			return nil, nil
		}
		return nil, err
	}

	if isHard {
		if err := c.invalidateAddress(ctx, item.EmailAddress); err != nil {
			return nil, err
		}
	}

	campaignID, err := c.resolveCampaign(ctx, item)
	if err != nil {
		return nil, err
	}
	if campaignID != "" {
		target, err := c.resolveTarget(ctx, item)
		if err != nil {
			return nil, err
		}
		if target != nil {
			if err := c.campaigns.LogBounced(ctx, campaignID, item, target, item.EmailAddress, isHard); err != nil {
				return nil, err
			}
		}
	}

	return &Result{IsHard: isHard, QueueItemID: item.ID}, nil
}

// extractToken finds the queue-item token: the X-Queue-Item-Id header anywhere
// in the raw content takes priority, then the +bounce-qid- recipient tag in To.
func (c *Classifier) extractToken(m *mail.Message) (string, error) {
	content, err := m.FullRawContent()
	if err != nil {
		return "", fmt.Errorf("failed to read bounce content: %w", err)
	}
	if match := headerQidPattern.FindStringSubmatch(content); match != nil {
		return match[1], nil
	}
	if match := toQidPattern.FindStringSubmatch(m.GetHeader("To")); match != nil {
		return match[1], nil
	}
	return "", nil
}

func (c *Classifier) invalidateAddress(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	rec, err := c.addresses.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := c.addresses.MarkInvalid(ctx, rec.ID); err != nil {
		return err
	}
	c.logf("bounce: marked address %s invalid", address)
	return nil
}

func (c *Classifier) resolveCampaign(ctx context.Context, item *models.QueueItem) (string, error) {
	if item.MassEmailID == nil {
		return "", nil
	}
	me, err := c.massEmails.GetByID(ctx, *item.MassEmailID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if me.CampaignID == nil {
		return "", nil
	}
	return *me.CampaignID, nil
}

// resolveTarget looks up the queue item's recipient record. The record may
// have been deleted since the send; that is not an error.
func (c *Classifier) resolveTarget(ctx context.Context, item *models.QueueItem) (*repository.EntityRef, error) {
	if !repository.KnownEntityType(item.TargetType) {
		return nil, nil
	}
	target, err := c.targets.Resolve(ctx, item.TargetType, item.TargetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return target, nil
}

func (c *Classifier) logf(format string, args ...any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
