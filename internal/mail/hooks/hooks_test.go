package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gocrm-io/gocrm-ce/internal/mail"
	"github.com/gocrm-io/gocrm-ce/internal/mail/bounce"
	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type stubAccount struct{ id string }

func (a *stubAccount) ID() string                      { return a.id }
func (a *stubAccount) Type() string                    { return "imap" }
func (a *stubAccount) Host() string                    { return "mail.example.com" }
func (a *stubAccount) Port() int                       { return 143 }
func (a *stubAccount) Username() string                { return "user" }
func (a *stubAccount) Password() []byte                { return []byte("pw") }
func (a *stubAccount) Folders() []string               { return []string{"INBOX"} }
func (a *stubAccount) PortionLimit() int               { return 10 }
func (a *stubAccount) KeepUnread() bool                { return false }
func (a *stubAccount) FetchSince() time.Time           { return time.Time{} }
func (a *stubAccount) FolderCursor(string) string      { return "" }
func (a *stubAccount) SetFolderCursor(string, string)  {}
func (a *stubAccount) SaveCursors(context.Context) error { return nil }
func (a *stubAccount) UserIDs() []string               { return nil }
func (a *stubAccount) TeamIDs() []string               { return nil }

type stubClassifier struct {
	result *bounce.Result
	err    error
	calls  int
}

func (c *stubClassifier) Process(context.Context, *mail.Message) (*bounce.Result, error) {
	c.calls++
	return c.result, c.err
}

func daemonMessage(extraHeaders string) *mail.Message {
	raw := "From: MAILER-DAEMON@mx.example.com\r\n" +
		"To: sender@crm.example.com\r\n" +
		extraHeaders +
		"\r\nbody"
	return mail.NewMessageFromRaw("1", raw)
}

func plainMessage(extraHeaders string) *mail.Message {
	raw := "From: alice@example.com\r\n" +
		"To: support@crm.example.com\r\n" +
		extraHeaders +
		"\r\nbody"
	return mail.NewMessageFromRaw("1", raw)
}

func TestBeforeFetchSkipsRecognizedBounce(t *testing.T) {
	h := NewBeforeFetch(&stubClassifier{result: &bounce.Result{QueueItemID: "qi-1"}}, nil)
	result := h.Process(context.Background(), &stubAccount{id: "acc-1"}, daemonMessage(""))
	require.True(t, result.Skip)
}

func TestBeforeFetchSkipsOnClassifierError(t *testing.T) {
	h := NewBeforeFetch(&stubClassifier{err: errors.New("boom")}, nil)
	result := h.Process(context.Background(), &stubAccount{id: "acc-1"}, daemonMessage(""))
	require.True(t, result.Skip)
}

func TestBeforeFetchUncorrelatedBounceFallsThrough(t *testing.T) {
	h := NewBeforeFetch(&stubClassifier{}, nil)
	result := h.Process(context.Background(), &stubAccount{id: "acc-1"}, daemonMessage(""))
	require.False(t, result.Skip)
	require.Contains(t, result.Flags, FlagIsAutoReply)
	require.Contains(t, result.Flags, FlagSkipAutoReply)
}

func TestBeforeFetchIsIdempotent(t *testing.T) {
	c := &stubClassifier{}
	h := NewBeforeFetch(c, nil)
	m := daemonMessage("")
	first := h.Process(context.Background(), &stubAccount{id: "acc-1"}, m)
	second := h.Process(context.Background(), &stubAccount{id: "acc-1"}, m)
	require.Equal(t, first, second)
	require.Equal(t, 2, c.calls)
}

func TestBeforeFetchAutoReplyFlags(t *testing.T) {
	h := NewBeforeFetch(&stubClassifier{}, nil)
	account := &stubAccount{id: "acc-1"}
	ctx := context.Background()

	cases := []struct {
		name          string
		headers       string
		isAutoReply   bool
		skipAutoReply bool
	}{
		{"plain", "", false, false},
		{"x-autoreply", "X-Autoreply: yes\r\n", true, true},
		{"x-autorespond", "X-Autorespond: 1\r\n", true, true},
		{"auto-submitted replied", "Auto-submitted: auto-replied\r\n", true, true},
		{"auto-submitted no", "Auto-submitted: no\r\n", false, false},
		{"suppress all", "X-Auto-Response-Suppress: All\r\n", false, true},
		{"suppress autoreply", "X-Auto-Response-Suppress: AutoReply\r\n", false, true},
		{"suppress other", "X-Auto-Response-Suppress: DR\r\n", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := h.Process(ctx, account, plainMessage(tc.headers))
			require.False(t, result.Skip)
			require.Equal(t, tc.isAutoReply, result.Flags[FlagIsAutoReply])
			require.Equal(t, tc.skipAutoReply, result.Flags[FlagSkipAutoReply])
		})
	}
}

type stubParents struct {
	existing map[string]bool
	err      error
}

func (s *stubParents) Resolve(_ context.Context, entityType, id string) (*repository.EntityRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.existing[entityType+"/"+id] {
		return nil, repository.ErrNotFound
	}
	return &repository.EntityRef{Type: entityType, ID: id}, nil
}

type stubStream struct {
	notes []string
	err   error
}

func (s *stubStream) NoteEmailReceived(_ context.Context, parentType, parentID string, _ *models.Email) error {
	if s.err != nil {
		return s.err
	}
	s.notes = append(s.notes, parentType+"/"+parentID)
	return nil
}

func fetchedEmail(parentType, parentID string) *models.Email {
	now := time.Now()
	email := &models.Email{ID: "em-1", Subject: "hello", FetchedAt: &now}
	if parentType != "" {
		email.ParentType = &parentType
		email.ParentID = &parentID
	}
	return email
}

func TestAfterFetchPostsNoteForResolvableParent(t *testing.T) {
	stream := &stubStream{}
	h := NewAfterFetch(&stubParents{existing: map[string]bool{"Case/c-1": true}}, stream, nil)
	h.Process(context.Background(), &stubAccount{id: "acc-1"}, fetchedEmail("Case", "c-1"))
	require.Equal(t, []string{"Case/c-1"}, stream.notes)
}

func TestAfterFetchSkipsMissingParent(t *testing.T) {
	stream := &stubStream{}
	h := NewAfterFetch(&stubParents{existing: map[string]bool{}}, stream, nil)
	h.Process(context.Background(), &stubAccount{id: "acc-1"}, fetchedEmail("Case", "gone"))
	require.Empty(t, stream.notes)
}

func TestAfterFetchSkipsWithoutParentLink(t *testing.T) {
	stream := &stubStream{}
	h := NewAfterFetch(&stubParents{}, stream, nil)
	h.Process(context.Background(), &stubAccount{id: "acc-1"}, fetchedEmail("", ""))
	require.Empty(t, stream.notes)
}

func TestAfterFetchSkipsNonFetchedEmail(t *testing.T) {
	stream := &stubStream{}
	h := NewAfterFetch(&stubParents{existing: map[string]bool{"Case/c-1": true}}, stream, nil)
	email := fetchedEmail("Case", "c-1")
	email.FetchedAt = nil
	h.Process(context.Background(), &stubAccount{id: "acc-1"}, email)
	require.Empty(t, stream.notes)
}

func TestAfterFetchSwallowsNotifierError(t *testing.T) {
	stream := &stubStream{err: errors.New("stream down")}
	h := NewAfterFetch(&stubParents{existing: map[string]bool{"Case/c-1": true}}, stream, nil)
	h.Process(context.Background(), &stubAccount{id: "acc-1"}, fetchedEmail("Case", "c-1"))
}
