package connector

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/knadh/go-pop3"
	"github.com/stretchr/testify/require"
)

type fakePOP3Conn struct {
	msgs   []pop3.MessageID
	bodies map[int][]byte

	authErr error
	uidlErr error
	retrErr error

	deleted   []int
	quitCalls int
}

func (c *fakePOP3Conn) Auth(_, _ string) error { return c.authErr }
func (c *fakePOP3Conn) Quit() error {
	c.quitCalls++
	return nil
}
func (c *fakePOP3Conn) Uidl(_ int) ([]pop3.MessageID, error) {
	return c.msgs, c.uidlErr
}
func (c *fakePOP3Conn) RetrRaw(msgID int) (*bytes.Buffer, error) {
	if c.retrErr != nil {
		return nil, c.retrErr
	}
	return bytes.NewBuffer(append([]byte(nil), c.bodies[msgID]...)), nil
}
func (c *fakePOP3Conn) Dele(msgID ...int) error {
	c.deleted = append(c.deleted, msgID...)
	return nil
}

func pop3Messages(uids ...string) []pop3.MessageID {
	out := make([]pop3.MessageID, 0, len(uids))
	for i, uid := range uids {
		out = append(out, pop3.MessageID{ID: i + 1, UID: uid})
	}
	return out
}

func TestPOP3FetcherFetchesAndAdvancesCursor(t *testing.T) {
	conn := &fakePOP3Conn{
		msgs:   pop3Messages("u-1", "u-2"),
		bodies: map[int][]byte{1: []byte("first"), 2: []byte("second")},
	}
	h := &recordingHandler{}
	f := NewPOP3Fetcher(withPOP3ConnFactory(func(Account) (pop3Connection, error) { return conn, nil }))

	acc := newTestAccount("pop3")
	require.NoError(t, f.Fetch(context.Background(), acc, h))

	require.Len(t, h.messages, 2)
	require.Equal(t, "u-1", h.messages[0].UID)
	require.Equal(t, "INBOX", h.messages[0].Folder)
	require.Equal(t, "u-2", acc.cursors[pop3Folder])
	require.Equal(t, 1, acc.saves)
	require.Empty(t, conn.deleted)
	require.Equal(t, 1, conn.quitCalls)
}

func TestPOP3FetcherSkipsThroughCursor(t *testing.T) {
	conn := &fakePOP3Conn{
		msgs:   pop3Messages("u-1", "u-2", "u-3"),
		bodies: map[int][]byte{1: []byte("a"), 2: []byte("b"), 3: []byte("c")},
	}
	h := &recordingHandler{}
	f := NewPOP3Fetcher(withPOP3ConnFactory(func(Account) (pop3Connection, error) { return conn, nil }))

	acc := newTestAccount("pop3")
	acc.cursors[pop3Folder] = "u-2"
	require.NoError(t, f.Fetch(context.Background(), acc, h))

	require.Len(t, h.messages, 1)
	require.Equal(t, "u-3", h.messages[0].UID)
}

func TestPOP3FetcherHonorsPortionLimit(t *testing.T) {
	conn := &fakePOP3Conn{
		msgs:   pop3Messages("u-1", "u-2", "u-3"),
		bodies: map[int][]byte{1: []byte("a"), 2: []byte("b"), 3: []byte("c")},
	}
	h := &recordingHandler{}
	f := NewPOP3Fetcher(withPOP3ConnFactory(func(Account) (pop3Connection, error) { return conn, nil }))

	acc := newTestAccount("pop3")
	acc.portion = 2
	require.NoError(t, f.Fetch(context.Background(), acc, h))

	require.Len(t, h.messages, 2)
	require.Equal(t, "u-2", acc.cursors[pop3Folder])
}

func TestPOP3FetcherDeleteAfterFetchOptIn(t *testing.T) {
	conn := &fakePOP3Conn{
		msgs:   pop3Messages("u-1"),
		bodies: map[int][]byte{1: []byte("a")},
	}
	f := NewPOP3Fetcher(
		WithPOP3DeleteAfterFetch(true),
		withPOP3ConnFactory(func(Account) (pop3Connection, error) { return conn, nil }),
	)

	require.NoError(t, f.Fetch(context.Background(), newTestAccount("pop3"), &recordingHandler{}))
	require.Equal(t, []int{1}, conn.deleted)
}

func TestPOP3FetcherValidationAndErrors(t *testing.T) {
	f := NewPOP3Fetcher()

	wrongType := newTestAccount("imap")
	require.Error(t, f.Fetch(context.Background(), wrongType, &recordingHandler{}))
	require.Error(t, f.Fetch(context.Background(), newTestAccount("pop3"), nil))

	f = NewPOP3Fetcher(withPOP3ConnFactory(func(Account) (pop3Connection, error) {
		return &fakePOP3Conn{authErr: errors.New("bad creds")}, nil
	}))
	err := f.Fetch(context.Background(), newTestAccount("pop3"), &recordingHandler{})
	require.ErrorContains(t, err, "pop3 auth")

	f = NewPOP3Fetcher(withPOP3ConnFactory(func(Account) (pop3Connection, error) {
		return nil, errors.New("dial failed")
	}))
	err = f.Fetch(context.Background(), newTestAccount("pop3"), &recordingHandler{})
	require.ErrorContains(t, err, "pop3 connect")
}
