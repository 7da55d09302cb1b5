package mail

import (
	"bufio"
	"fmt"
	"net/mail"
	"strings"
)

// Storage gives access to the parts of one mailbox message. Implementations
// sit on top of an open IMAP/POP3 session or an in-memory capture.
type Storage interface {
	HeaderAndFlags(id string) (header string, flags []string, err error)
	RawContent(id string) (string, error)
}

// Message is a lazy view over a single mailbox message. The header block and
// server-side flags are pulled at construction; the body is fetched from
// storage on first access and cached. A Message is not safe for concurrent
// use — the fetch pipeline owns it for the duration of one cycle.
type Message struct {
	id      string
	storage Storage

	rawHeader  string
	flags      []string
	rawContent *string // nil until loaded
	fullRaw    string  // optional pre-captured full message

	parsed mail.Header // parsed lazily from rawHeader
}

// NewMessage builds a message over storage, eagerly loading header and flags.
func NewMessage(id string, storage Storage) (*Message, error) {
	m := &Message{id: id, storage: storage}
	if storage != nil {
		header, flags, err := storage.HeaderAndFlags(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load header for message %s: %w", id, err)
		}
		m.rawHeader = header
		m.flags = flags
	}
	return m, nil
}

// NewMessageFromRaw builds a message from a full raw RFC822 payload, splitting
// the header block off. Used when the connector already holds the whole body.
func NewMessageFromRaw(id string, raw string) *Message {
	header := raw
	body := ""
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if idx := strings.Index(raw, sep); idx >= 0 {
			header = raw[:idx]
			body = raw[idx+len(sep):]
			break
		}
	}
	return &Message{
		id:         id,
		rawHeader:  header,
		rawContent: &body,
		fullRaw:    raw,
	}
}

// ID returns the storage identifier of the message.
func (m *Message) ID() string { return m.id }

// RawHeader returns the unparsed header block.
func (m *Message) RawHeader() string { return m.rawHeader }

// Flags returns the server-side mailbox flags captured at construction.
func (m *Message) Flags() []string { return m.flags }

// IsFetched reports whether the header block is present, i.e. the message was
// actually pulled from the mailbox rather than constructed empty.
func (m *Message) IsFetched() bool { return m.rawHeader != "" }

// HasHeader reports whether the named header is present.
func (m *Message) HasHeader(name string) bool {
	return m.header().Get(name) != ""
}

// GetHeader returns the named header value or "".
func (m *Message) GetHeader(name string) string {
	return m.header().Get(name)
}

// RawContent returns the message body, fetching it from storage on first call.
// Repeat calls return the cached value.
func (m *Message) RawContent() (string, error) {
	if m.rawContent != nil {
		return *m.rawContent, nil
	}
	if m.storage == nil {
		empty := ""
		m.rawContent = &empty
		return "", nil
	}
	content, err := m.storage.RawContent(m.id)
	if err != nil {
		return "", fmt.Errorf("failed to load content for message %s: %w", m.id, err)
	}
	m.rawContent = &content
	return content, nil
}

// FullRawContent returns the complete message, header block included.
func (m *Message) FullRawContent() (string, error) {
	if m.fullRaw != "" {
		return m.fullRaw, nil
	}
	content, err := m.RawContent()
	if err != nil {
		return "", err
	}
	return m.rawHeader + "\n" + content, nil
}

func (m *Message) header() mail.Header {
	if m.parsed != nil {
		return m.parsed
	}
	reader := bufio.NewReader(strings.NewReader(m.rawHeader + "\r\n\r\n"))
	parsed, err := mail.ReadMessage(reader)
	if err != nil {
		m.parsed = mail.Header{}
		return m.parsed
	}
	m.parsed = parsed.Header
	return m.parsed
}
