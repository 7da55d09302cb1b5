package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	netmail "net/mail"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gocrm-io/gocrm-ce/internal/mail"
	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/mail/hooks"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type preFetchHook interface {
	Process(ctx context.Context, account connector.Account, m *mail.Message) hooks.Result
}

type postFetchHook interface {
	Process(ctx context.Context, account connector.Account, email *models.Email)
}

type emailStore interface {
	Insert(ctx context.Context, email *models.Email) (string, error)
	ExistsByMessageID(ctx context.Context, accountID, messageID string) (bool, error)
}

type ownerFinder interface {
	GetOwner(ctx context.Context, address string) (entityType, entityID string, err error)
}

// Pipeline converts fetched mailbox messages into persisted Email records. It
// implements connector.Handler. A message that fails to process is logged and
// dropped; one bad message never aborts the fetch cycle.
type Pipeline struct {
	before    preFetchHook
	after     postFetchHook
	emails    emailStore
	owners    ownerFinder
	sanitizer *bluemonday.Policy
	logger    *log.Logger
	now       func() time.Time
}

func New(before preFetchHook, after postFetchHook, emails emailStore, owners ownerFinder, logger *log.Logger) *Pipeline {
	return &Pipeline{
		before:    before,
		after:     after,
		emails:    emails,
		owners:    owners,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes one fetched message end to end.
func (p *Pipeline) Handle(ctx context.Context, account connector.Account, msg *connector.FetchedMessage) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m := mail.NewMessageFromRaw(msg.UID, string(msg.Raw))

	messageID := strings.Trim(m.GetHeader("Message-Id"), "<> ")
	if messageID != "" {
		exists, err := p.emails.ExistsByMessageID(ctx, account.ID(), messageID)
		if err != nil {
			p.logf("pipeline: account %s: dedup check failed for %s: %v", account.ID(), msg.UID, err)
			return nil
		}
		if exists {
			return nil
		}
	}

	result := p.before.Process(ctx, account, m)
	if result.Skip {
		return nil
	}

	email := p.buildEmail(ctx, account, m, msg, messageID, result)
	if _, err := p.emails.Insert(ctx, email); err != nil {
		p.logf("pipeline: account %s: failed to persist %s: %v", account.ID(), msg.UID, err)
		return nil
	}

	p.after.Process(ctx, account, email)
	return nil
}

func (p *Pipeline) buildEmail(ctx context.Context, account connector.Account, m *mail.Message, msg *connector.FetchedMessage, messageID string, result hooks.Result) *models.Email {
	body, isHTML := p.extractBody(m, msg.Raw)
	now := p.now()
	received := msg.ReceivedAt
	if received.IsZero() {
		received = now
	}

	email := &models.Email{
		AccountID:     account.ID(),
		FromAddress:   parseAddress(m.GetHeader("From")),
		ToAddresses:   m.GetHeader("To"),
		Subject:       decodeSubject(m.GetHeader("Subject")),
		Body:          body,
		IsHTML:        isHTML,
		IsAutoReply:   result.Flags[hooks.FlagIsAutoReply],
		SkipAutoReply: result.Flags[hooks.FlagSkipAutoReply],
		ReceivedAt:    received,
		FetchedAt:     &now,
	}
	if messageID != "" {
		email.MessageID = &messageID
	}
	if users := account.UserIDs(); len(users) > 0 {
		email.AssignedUserID = &users[0]
	}
	if teams := account.TeamIDs(); len(teams) > 0 {
		email.TeamID = &teams[0]
	}

	p.linkParent(ctx, email)
	return email
}

// linkParent points the email at the CRM record owning the sender address.
func (p *Pipeline) linkParent(ctx context.Context, email *models.Email) {
	if p.owners == nil || email.FromAddress == "" {
		return
	}
	entityType, entityID, err := p.owners.GetOwner(ctx, email.FromAddress)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			p.logf("pipeline: parent lookup failed for %s: %v", email.FromAddress, err)
		}
		return
	}
	email.ParentType = &entityType
	email.ParentID = &entityID
}

// extractBody walks the MIME structure preferring HTML over plain text. HTML
// is sanitized before persistence. Falls back to the raw body when the MIME
// reader cannot parse the message.
func (p *Pipeline) extractBody(m *mail.Message, raw []byte) (string, bool) {
	reader, err := gomail.CreateReader(strings.NewReader(string(raw)))
	if err == nil {
		var plain, html string
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			header, ok := part.Header.(*gomail.InlineHeader)
			if !ok {
				continue
			}
			contentType, _, _ := header.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch contentType {
			case "text/html":
				if html == "" {
					html = string(content)
				}
			case "text/plain":
				if plain == "" {
					plain = string(content)
				}
			}
		}
		if html != "" {
			return p.sanitizer.Sanitize(html), true
		}
		if plain != "" {
			return plain, false
		}
	}

	body, err := m.RawContent()
	if err != nil {
		return "", false
	}
	return body, false
}

func parseAddress(value string) string {
	if value == "" {
		return ""
	}
	addr, err := netmail.ParseAddress(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return addr.Address
}

func decodeSubject(value string) string {
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func (p *Pipeline) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
