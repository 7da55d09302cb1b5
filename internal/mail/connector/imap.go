package connector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	List(ref, pattern string, options *imap.ListOptions) listWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}
type listWaiter interface {
	Collect() ([]*imap.ListData, error)
}

// IMAPFetcher polls IMAP/IMAPS mailboxes. Each monitored folder is searched
// from its stored UID cursor; at most PortionLimit messages are pulled per
// cycle across all folders.
type IMAPFetcher struct {
	dialTimeout time.Duration
	now         func() time.Time
	logger      *log.Logger
	newClient   func(Account) (imapClient, error)
}

// IMAPFetcherOption customizes fetcher behavior.
type IMAPFetcherOption func(*IMAPFetcher)

// NewIMAPFetcher returns an IMAP connector ready for polling.
func NewIMAPFetcher(opts ...IMAPFetcherOption) *IMAPFetcher {
	f := &IMAPFetcher{
		dialTimeout: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      log.Default(),
	}
	f.newClient = f.defaultClientFactory
	for _, opt := range opts {
		opt(f)
	}
	if f.newClient == nil {
		f.newClient = f.defaultClientFactory
	}
	return f
}

// WithIMAPLogger overrides the logger used for connector diagnostics.
func WithIMAPLogger(logger *log.Logger) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithIMAPDialTimeout overrides the socket dial timeout.
func WithIMAPDialTimeout(timeout time.Duration) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

func withIMAPClientFactory(factory func(Account) (imapClient, error)) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		f.newClient = factory
	}
}

// WithIMAPClock overrides the wall clock, primarily for tests.
func WithIMAPClock(now func() time.Time) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// Name returns the connector identifier.
func (f *IMAPFetcher) Name() string {
	return "imap"
}

// Fetch pulls pending messages from each monitored folder and hands them to
// the handler, then persists the advanced folder cursors.
func (f *IMAPFetcher) Fetch(ctx context.Context, account Account, handler Handler) error {
	if handler == nil {
		return errors.New("imap fetcher requires a handler")
	}
	if err := validateIMAPAccount(account); err != nil {
		return err
	}

	client, err := f.newClient(account)
	if err != nil {
		return fmt.Errorf("imap connect: %w", err)
	}
	defer f.safeClose(client)

	if err := client.Login(account.Username(), string(account.Password())).Wait(); err != nil {
		return fmt.Errorf("imap auth: %w", err)
	}

	remaining := account.PortionLimit()
	for _, folder := range account.Folders() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if remaining <= 0 {
			break
		}
		handled, err := f.fetchFolder(ctx, client, account, handler, folder, remaining)
		if err != nil {
			return err
		}
		remaining -= handled
	}

	if err := account.SaveCursors(ctx); err != nil {
		return fmt.Errorf("imap save cursors: %w", err)
	}

	if err := client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}

	return nil
}

func (f *IMAPFetcher) fetchFolder(ctx context.Context, client imapClient, account Account, handler Handler, folder string, limit int) (int, error) {
	if _, err := client.Select(folder, &imap.SelectOptions{ReadOnly: account.KeepUnread()}).Wait(); err != nil {
		return 0, fmt.Errorf("imap select %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{}
	lastUID := parseUIDCursor(account.FolderCursor(folder))
	if lastUID > 0 {
		uidSet := imap.UIDSet{}
		uidSet.AddRange(imap.UID(lastUID+1), 0)
		criteria.UID = []imap.UIDSet{uidSet}
	} else if since := account.FetchSince(); !since.IsZero() {
		criteria.Since = since
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap search %s: %w", folder, err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return 0, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > limit {
		uids = uids[:limit]
	}

	section := &imap.FetchItemBodySection{Peek: account.KeepUnread()}
	fetchOpts := &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}
	fetchBuffers, err := client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return 0, fmt.Errorf("imap fetch %s: %w", folder, err)
	}
	// Servers may answer a UID fetch in any order; the cursor must end on the
	// highest handled UID.
	sort.Slice(fetchBuffers, func(i, j int) bool { return fetchBuffers[i].UID < fetchBuffers[j].UID })

	handled := 0
	for _, buf := range fetchBuffers {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		body := buf.FindBodySection(section)
		if body == nil {
			continue
		}
		received := buf.InternalDate
		if received.IsZero() {
			received = f.now()
		}
		uidStr := strconv.FormatUint(uint64(buf.UID), 10)
		msg := &FetchedMessage{
			Connector:  f.Name(),
			UID:        uidStr,
			Folder:     folder,
			ReceivedAt: received,
			Flags:      flagStrings(buf.Flags),
			Raw:        append([]byte(nil), body...),
		}
		if err := handler.Handle(ctx, account, msg); err != nil {
			return handled, fmt.Errorf("handler failed for %s/%s: %w", folder, uidStr, err)
		}
		account.SetFolderCursor(folder, uidStr)
		handled++
	}

	return handled, nil
}

// ListFolders connects, authenticates and lists the mailbox folder names.
// Used by the test-connection and folder-listing API endpoints.
func (f *IMAPFetcher) ListFolders(ctx context.Context, account Account) ([]string, error) {
	if err := validateIMAPAccount(account); err != nil {
		return nil, err
	}
	client, err := f.newClient(account)
	if err != nil {
		return nil, fmt.Errorf("imap connect: %w", err)
	}
	defer f.safeClose(client)

	if err := client.Login(account.Username(), string(account.Password())).Wait(); err != nil {
		return nil, fmt.Errorf("imap auth: %w", err)
	}

	listData, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}
	folders := make([]string, 0, len(listData))
	for _, d := range listData {
		folders = append(folders, d.Mailbox)
	}
	sort.Strings(folders)

	if err := client.Logout().Wait(); err != nil {
		return nil, fmt.Errorf("imap logout: %w", err)
	}
	return folders, nil
}

func (f *IMAPFetcher) safeClose(client imapClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil && f.logger != nil {
		f.logger.Printf("imap close error: %v", err)
	}
}

func (f *IMAPFetcher) defaultClientFactory(account Account) (imapClient, error) {
	if account.Host() == "" {
		return nil, errors.New("imap account missing host")
	}
	port := account.Port()
	if port == 0 {
		if useIMAPTLS(account.Type()) {
			port = 993
		} else {
			port = 143
		}
	}
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: f.dialTimeout}}
	addr := fmt.Sprintf("%s:%d", account.Host(), port)
	var client *imapclient.Client
	var err error
	if useIMAPTLS(account.Type()) {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) List(ref, pattern string, options *imap.ListOptions) listWaiter {
	return w.Client.List(ref, pattern, options)
}

func validateIMAPAccount(account Account) error {
	if account.Username() == "" {
		return errors.New("imap account missing username")
	}
	if len(account.Password()) == 0 {
		return errors.New("imap account missing password")
	}
	if !supportsIMAP(account.Type()) {
		return fmt.Errorf("account type %s not supported by IMAP connector", account.Type())
	}
	return nil
}

func supportsIMAP(t string) bool {
	switch strings.ToLower(t) {
	case "imap", "imaps", "imap_tls", "imaps_tls":
		return true
	default:
		return false
	}
}

func useIMAPTLS(t string) bool {
	switch strings.ToLower(t) {
	case "imaps", "imap_tls", "imaps_tls":
		return true
	default:
		return false
	}
}

func parseUIDCursor(cursor string) uint32 {
	if cursor == "" {
		return 0
	}
	v, err := strconv.ParseUint(cursor, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

func flagStrings(flags []imap.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, 0, len(flags))
	for _, fl := range flags {
		out = append(out, string(fl))
	}
	return out
}
