package connector

import (
	"context"
	"time"
)

// Account is the capability set a connector needs to poll one mailbox and the
// pipeline needs to own the resulting emails. Personal and group accounts both
// satisfy it.
type Account interface {
	ID() string
	Type() string // imap, imaps, pop3, pop3s
	Host() string
	Port() int
	Username() string
	Password() []byte

	Folders() []string
	PortionLimit() int
	KeepUnread() bool
	FetchSince() time.Time

	// FolderCursor returns the stored fetch position for a folder, "" when the
	// folder has never been fetched. SetFolderCursor updates it in memory;
	// SaveCursors persists all cursors silently.
	FolderCursor(folder string) string
	SetFolderCursor(folder, cursor string)
	SaveCursors(ctx context.Context) error

	// UserIDs and TeamIDs are the owner link-sets stamped onto fetched emails.
	UserIDs() []string
	TeamIDs() []string
}

// FetchedMessage wraps the on-wire RFC822 payload plus mailbox metadata.
type FetchedMessage struct {
	UID        string
	Folder     string
	Connector  string
	ReceivedAt time.Time
	Flags      []string
	Raw        []byte
}

// Handler receives fully fetched messages from a connector.
type Handler interface {
	Handle(ctx context.Context, account Account, msg *FetchedMessage) error
}

// Fetcher implementations (IMAP, POP3) stream a portion of pending messages
// from a mailbox to a handler.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, account Account, handler Handler) error
}

// Factory resolves the connector implementation for a mailbox.
type Factory interface {
	FetcherFor(account Account) (Fetcher, error)
}
