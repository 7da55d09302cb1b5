package account

import (
	"context"
	"time"
)

// Static is an unsaved account built from raw connection parameters. The
// test-connection and folder-listing endpoints use it to probe a mailbox
// before anything is persisted. Cursors live in memory only.
type Static struct {
	AccountType string
	HostName    string
	PortNumber  int
	User        string
	Secret      []byte
	FolderList  []string

	cursors FetchData
}

func (s *Static) ID() string       { return "" }
func (s *Static) Type() string     { return s.AccountType }
func (s *Static) Host() string     { return s.HostName }
func (s *Static) Port() int        { return s.PortNumber }
func (s *Static) Username() string { return s.User }
func (s *Static) Password() []byte { return s.Secret }

func (s *Static) Folders() []string {
	if len(s.FolderList) == 0 {
		return []string{"INBOX"}
	}
	return s.FolderList
}

func (s *Static) PortionLimit() int     { return 1 }
func (s *Static) KeepUnread() bool      { return true }
func (s *Static) FetchSince() time.Time { return time.Time{} }

func (s *Static) FolderCursor(folder string) string { return s.cursors[folder] }

func (s *Static) SetFolderCursor(folder, cursor string) {
	if s.cursors == nil {
		s.cursors = FetchData{}
	}
	s.cursors[folder] = cursor
}

func (s *Static) SaveCursors(context.Context) error { return nil }

func (s *Static) UserIDs() []string { return nil }
func (s *Static) TeamIDs() []string { return nil }
