package connector

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// testAccount is the shared connector.Account stub for connector tests.
type testAccount struct {
	id         string
	accType    string
	host       string
	port       int
	username   string
	password   []byte
	folders    []string
	portion    int
	keepUnread bool
	fetchSince time.Time

	cursors map[string]string
	saves   int
}

func newTestAccount(accType string, folders ...string) *testAccount {
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}
	return &testAccount{
		id:       "acc-1",
		accType:  accType,
		host:     "mail.example.com",
		username: "agent",
		password: []byte("secret"),
		folders:  folders,
		portion:  10,
		cursors:  map[string]string{},
	}
}

func (a *testAccount) ID() string            { return a.id }
func (a *testAccount) Type() string          { return a.accType }
func (a *testAccount) Host() string          { return a.host }
func (a *testAccount) Port() int             { return a.port }
func (a *testAccount) Username() string      { return a.username }
func (a *testAccount) Password() []byte      { return a.password }
func (a *testAccount) Folders() []string     { return a.folders }
func (a *testAccount) PortionLimit() int     { return a.portion }
func (a *testAccount) KeepUnread() bool      { return a.keepUnread }
func (a *testAccount) FetchSince() time.Time { return a.fetchSince }

func (a *testAccount) FolderCursor(folder string) string { return a.cursors[folder] }
func (a *testAccount) SetFolderCursor(folder, cursor string) {
	a.cursors[folder] = cursor
}
func (a *testAccount) SaveCursors(context.Context) error {
	a.saves++
	return nil
}

func (a *testAccount) UserIDs() []string { return nil }
func (a *testAccount) TeamIDs() []string { return nil }

// recordingHandler captures handled messages and can fail on a chosen UID.
type recordingHandler struct {
	messages []*FetchedMessage
	failUID  string
}

func (h *recordingHandler) Handle(_ context.Context, _ Account, msg *FetchedMessage) error {
	if h.failUID != "" && msg.UID == h.failUID {
		return fmt.Errorf("handler rejected %s", msg.UID)
	}
	h.messages = append(h.messages, msg)
	return nil
}

func TestFactoryResolvesByNormalizedType(t *testing.T) {
	factory := DefaultFactory()

	imapFetcher, err := factory.FetcherFor(newTestAccount("IMAPS"))
	if err != nil {
		t.Fatalf("FetcherFor imaps: %v", err)
	}
	if imapFetcher.Name() != "imap" {
		t.Fatalf("expected imap fetcher, got %s", imapFetcher.Name())
	}

	pop3Fetcher, err := factory.FetcherFor(newTestAccount(" pop3s "))
	if err != nil {
		t.Fatalf("FetcherFor pop3s: %v", err)
	}
	if pop3Fetcher.Name() != "pop3" {
		t.Fatalf("expected pop3 fetcher, got %s", pop3Fetcher.Name())
	}

	if _, err := factory.FetcherFor(newTestAccount("exchange")); err == nil {
		t.Fatal("expected error for unregistered account type")
	}
}
