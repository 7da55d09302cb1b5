package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/go-pop3"
)

// pop3Folder is the pseudo-folder POP3 cursors are stored under; the protocol
// has no mailbox hierarchy.
const pop3Folder = "INBOX"

type pop3Connection interface {
	Auth(user, password string) error
	Quit() error
	Uidl(msgID int) ([]pop3.MessageID, error)
	RetrRaw(msgID int) (*bytes.Buffer, error)
	Dele(msgID ...int) error
}

type pop3ConnFactory func(Account) (pop3Connection, error)

// POP3Fetcher polls POP3/POP3S mailboxes. The folder cursor stores the UIDL of
// the last fetched message; messages up to and including it are skipped on the
// next cycle.
type POP3Fetcher struct {
	deleteAfterFetch bool
	dialTimeout      time.Duration
	now              func() time.Time
	logger           *log.Logger
	newConn          pop3ConnFactory
}

// POP3FetcherOption customizes fetcher behavior.
type POP3FetcherOption func(*POP3Fetcher)

// NewPOP3Fetcher returns a POP3 connector ready for polling.
func NewPOP3Fetcher(opts ...POP3FetcherOption) *POP3Fetcher {
	f := &POP3Fetcher{
		dialTimeout: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      log.Default(),
	}
	f.newConn = f.defaultConnFactory
	for _, opt := range opts {
		opt(f)
	}
	if f.newConn == nil {
		f.newConn = f.defaultConnFactory
	}
	return f
}

// WithPOP3DeleteAfterFetch toggles destructive POP3 behavior. Off by default:
// mail stays on the server so other clients still see it.
func WithPOP3DeleteAfterFetch(delete bool) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		f.deleteAfterFetch = delete
	}
}

// WithPOP3Logger overrides the logger used for connector diagnostics.
func WithPOP3Logger(logger *log.Logger) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPOP3DialTimeout overrides the socket dial timeout.
func WithPOP3DialTimeout(timeout time.Duration) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

func withPOP3ConnFactory(factory pop3ConnFactory) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		f.newConn = factory
	}
}

// WithPOP3Clock overrides the wall clock, primarily for tests.
func WithPOP3Clock(now func() time.Time) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// Name returns the connector identifier.
func (f *POP3Fetcher) Name() string {
	return "pop3"
}

// Fetch pulls pending messages and hands them to the handler, then persists
// the advanced cursor.
func (f *POP3Fetcher) Fetch(ctx context.Context, account Account, handler Handler) error {
	if handler == nil {
		return errors.New("pop3 fetcher requires a handler")
	}
	if err := validatePOP3Account(account); err != nil {
		return err
	}

	conn, err := f.newConn(account)
	if err != nil {
		return fmt.Errorf("pop3 connect: %w", err)
	}
	defer f.safeQuit(conn)

	if err := conn.Auth(account.Username(), string(account.Password())); err != nil {
		return fmt.Errorf("pop3 auth: %w", err)
	}

	msgs, err := conn.Uidl(0)
	if err != nil {
		return fmt.Errorf("pop3 uidl: %w", err)
	}
	msgs = skipThroughCursor(msgs, account.FolderCursor(pop3Folder))
	if limit := account.PortionLimit(); len(msgs) > limit {
		msgs = msgs[:limit]
	}

	for _, meta := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, err := conn.RetrRaw(meta.ID)
		if err != nil {
			return fmt.Errorf("pop3 retr %d: %w", meta.ID, err)
		}

		uid := meta.UID
		if uid == "" {
			uid = strconv.Itoa(meta.ID)
		}
		msg := &FetchedMessage{
			Connector:  f.Name(),
			UID:        uid,
			Folder:     pop3Folder,
			ReceivedAt: f.now(),
			Raw:        append([]byte(nil), payload.Bytes()...),
		}

		if err := handler.Handle(ctx, account, msg); err != nil {
			return fmt.Errorf("handler failed for %s: %w", uid, err)
		}
		account.SetFolderCursor(pop3Folder, uid)

		if f.deleteAfterFetch {
			if err := conn.Dele(meta.ID); err != nil {
				return fmt.Errorf("pop3 delete %d: %w", meta.ID, err)
			}
		}
	}

	if err := account.SaveCursors(ctx); err != nil {
		return fmt.Errorf("pop3 save cursors: %w", err)
	}

	return nil
}

// skipThroughCursor drops the listing prefix up to and including the cursor
// UIDL. When the cursor is absent from the listing (message deleted remotely)
// the whole listing is fetched again; dedup happens downstream on Message-ID.
func skipThroughCursor(msgs []pop3.MessageID, cursor string) []pop3.MessageID {
	if cursor == "" {
		return msgs
	}
	for i, meta := range msgs {
		if meta.UID == cursor {
			return msgs[i+1:]
		}
	}
	return msgs
}

func (f *POP3Fetcher) safeQuit(conn pop3Connection) {
	if conn == nil {
		return
	}
	if err := conn.Quit(); err != nil && f.logger != nil {
		f.logger.Printf("pop3 quit error: %v", err)
	}
}

func (f *POP3Fetcher) defaultConnFactory(account Account) (pop3Connection, error) {
	if account.Host() == "" {
		return nil, errors.New("pop3 account missing host")
	}
	port := account.Port()
	if port == 0 {
		if usePOP3TLS(account.Type()) {
			port = 995
		} else {
			port = 110
		}
	}
	client := pop3.New(pop3.Opt{
		Host:        account.Host(),
		Port:        port,
		DialTimeout: f.dialTimeout,
		TLSEnabled:  usePOP3TLS(account.Type()),
	})
	return client.NewConn()
}

func validatePOP3Account(account Account) error {
	if account.Username() == "" {
		return errors.New("pop3 account missing username")
	}
	if len(account.Password()) == 0 {
		return errors.New("pop3 account missing password")
	}
	if !supportsPOP3(account.Type()) {
		return fmt.Errorf("account type %s not supported by POP3 connector", account.Type())
	}
	return nil
}

func supportsPOP3(t string) bool {
	switch strings.ToLower(t) {
	case "pop3", "pop3s", "pop3_tls", "pop3s_tls":
		return true
	default:
		return false
	}
}

func usePOP3TLS(t string) bool {
	switch strings.ToLower(t) {
	case "pop3s", "pop3_tls", "pop3s_tls":
		return true
	default:
		return false
	}
}
