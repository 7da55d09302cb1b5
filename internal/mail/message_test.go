package mail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	header       string
	flags        []string
	content      string
	headerErr    error
	contentErr   error
	contentCalls int
}

func (s *fakeStorage) HeaderAndFlags(id string) (string, []string, error) {
	return s.header, s.flags, s.headerErr
}

func (s *fakeStorage) RawContent(id string) (string, error) {
	s.contentCalls++
	return s.content, s.contentErr
}

func TestMessageLoadsHeaderAtConstruction(t *testing.T) {
	storage := &fakeStorage{
		header: "From: a@example.com\r\nSubject: hi",
		flags:  []string{"\\Seen"},
	}
	msg, err := NewMessage("42", storage)
	require.NoError(t, err)
	require.True(t, msg.IsFetched())
	require.Equal(t, []string{"\\Seen"}, msg.Flags())
	require.True(t, msg.HasHeader("From"))
	require.Equal(t, "a@example.com", msg.GetHeader("From"))
	require.False(t, msg.HasHeader("X-Missing"))
}

func TestMessageConstructionFailsWhenHeaderUnavailable(t *testing.T) {
	storage := &fakeStorage{headerErr: errors.New("gone")}
	_, err := NewMessage("42", storage)
	require.Error(t, err)
}

func TestMessageBodyLoadedOnceAndCached(t *testing.T) {
	storage := &fakeStorage{header: "From: a@b", content: "the body"}
	msg, err := NewMessage("7", storage)
	require.NoError(t, err)

	body, err := msg.RawContent()
	require.NoError(t, err)
	require.Equal(t, "the body", body)

	body, err = msg.RawContent()
	require.NoError(t, err)
	require.Equal(t, "the body", body)
	require.Equal(t, 1, storage.contentCalls)
}

func TestMessageFromRawSplitsHeaderAndBody(t *testing.T) {
	raw := "From: MAILER-DAEMON@mx.example\r\nTo: x@example.com\r\n\r\nDelivery failed"
	msg := NewMessageFromRaw("1", raw)
	require.True(t, msg.IsFetched())
	require.Equal(t, "MAILER-DAEMON@mx.example", msg.GetHeader("From"))

	body, err := msg.RawContent()
	require.NoError(t, err)
	require.Equal(t, "Delivery failed", body)

	full, err := msg.FullRawContent()
	require.NoError(t, err)
	require.Equal(t, raw, full)
}

func TestMessageWithoutStorageHasEmptyBody(t *testing.T) {
	msg, err := NewMessage("9", nil)
	require.NoError(t, err)
	require.False(t, msg.IsFetched())

	body, err := msg.RawContent()
	require.NoError(t, err)
	require.Empty(t, body)
}
