package account

import (
	"context"
	"fmt"
	"time"

	"github.com/gocrm-io/gocrm-ce/internal/mail/connector"
	"github.com/gocrm-io/gocrm-ce/internal/models"
)

// DefaultPortionLimit bounds how many messages one fetch cycle pulls when the
// account does not set its own limit.
const DefaultPortionLimit = 10

type cursorStore interface {
	UpdateFetchData(ctx context.Context, id string, fetchData string, notify bool) error
}

type userStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetTeamUserIDs(ctx context.Context, teamID string) ([]string, error)
}

// base adapts a persisted MailAccount to the connector.Account capability set.
// Personal and Group embed it and differ only in how owner link-sets are
// resolved at construction.
type base struct {
	model          *models.MailAccount
	store          cursorStore
	cursors        FetchData
	dirty          bool
	defaultPortion int
	userIDs        []string
	teamIDs        []string
}

func newBase(model *models.MailAccount, store cursorStore, defaultPortion int) (base, error) {
	cursors, err := ParseFetchData(model.FetchData)
	if err != nil {
		return base{}, fmt.Errorf("account %s: %w", model.ID, err)
	}
	if defaultPortion <= 0 {
		defaultPortion = DefaultPortionLimit
	}
	return base{
		model:          model,
		store:          store,
		cursors:        cursors,
		defaultPortion: defaultPortion,
	}, nil
}

func (b *base) ID() string       { return b.model.ID }
func (b *base) Type() string     { return b.model.Security }
func (b *base) Host() string     { return b.model.Host }
func (b *base) Port() int        { return b.model.Port }
func (b *base) Username() string { return b.model.Username }
func (b *base) Password() []byte { return []byte(b.model.PasswordEncrypted) }

func (b *base) Folders() []string { return b.model.MonitoredFolderList() }
func (b *base) KeepUnread() bool  { return b.model.KeepFetchedUnread }

func (b *base) PortionLimit() int {
	if b.model.PortionLimit != nil && *b.model.PortionLimit > 0 {
		return *b.model.PortionLimit
	}
	return b.defaultPortion
}

func (b *base) FetchSince() time.Time {
	if b.model.FetchSince == nil {
		return time.Time{}
	}
	return *b.model.FetchSince
}

func (b *base) FolderCursor(folder string) string { return b.cursors[folder] }

func (b *base) SetFolderCursor(folder, cursor string) {
	if b.cursors[folder] == cursor {
		return
	}
	b.cursors[folder] = cursor
	b.dirty = true
}

// SaveCursors persists the cursor map through a silent write: the update must
// not surface as a user-facing modification of the account.
func (b *base) SaveCursors(ctx context.Context) error {
	if !b.dirty {
		return nil
	}
	encoded, err := b.cursors.Encode()
	if err != nil {
		return err
	}
	if err := b.store.UpdateFetchData(ctx, b.model.ID, encoded, false); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

func (b *base) UserIDs() []string { return b.userIDs }
func (b *base) TeamIDs() []string { return b.teamIDs }

// Personal is a mail account belonging to a single assigned user. Fetched
// emails are owned by that user and their default team.
type Personal struct {
	base
}

// NewPersonal builds the adapter. The assigned user must exist; a personal
// account without a resolvable user is a configuration error, not something
// to retry.
func NewPersonal(ctx context.Context, model *models.MailAccount, users userStore, store cursorStore, defaultPortion int) (*Personal, error) {
	if model.Kind != models.MailAccountKindPersonal {
		return nil, fmt.Errorf("account %s is not a personal account", model.ID)
	}
	if model.AssignedUserID == nil || *model.AssignedUserID == "" {
		return nil, fmt.Errorf("personal account %s has no assigned user", model.ID)
	}
	user, err := users.GetByID(ctx, *model.AssignedUserID)
	if err != nil {
		return nil, fmt.Errorf("personal account %s: assigned user %s: %w", model.ID, *model.AssignedUserID, err)
	}

	b, err := newBase(model, store, defaultPortion)
	if err != nil {
		return nil, err
	}
	b.userIDs = []string{user.ID}
	if user.DefaultTeamID != nil && *user.DefaultTeamID != "" {
		b.teamIDs = []string{*user.DefaultTeamID}
	}
	return &Personal{base: b}, nil
}

// Group is a team-owned shared mailbox. Fetched emails are owned by the team
// and visible to its members.
type Group struct {
	base
}

// NewGroup builds the adapter. The owning team must be set.
func NewGroup(ctx context.Context, model *models.MailAccount, users userStore, store cursorStore, defaultPortion int) (*Group, error) {
	if model.Kind != models.MailAccountKindGroup {
		return nil, fmt.Errorf("account %s is not a group account", model.ID)
	}
	if model.TeamID == nil || *model.TeamID == "" {
		return nil, fmt.Errorf("group account %s has no owning team", model.ID)
	}
	memberIDs, err := users.GetTeamUserIDs(ctx, *model.TeamID)
	if err != nil {
		return nil, fmt.Errorf("group account %s: %w", model.ID, err)
	}

	b, err := newBase(model, store, defaultPortion)
	if err != nil {
		return nil, err
	}
	b.userIDs = memberIDs
	b.teamIDs = []string{*model.TeamID}
	return &Group{base: b}, nil
}

// FromModel builds the adapter matching the account kind.
func FromModel(ctx context.Context, model *models.MailAccount, users userStore, store cursorStore, defaultPortion int) (connector.Account, error) {
	switch model.Kind {
	case models.MailAccountKindPersonal:
		return NewPersonal(ctx, model, users, store, defaultPortion)
	case models.MailAccountKindGroup:
		return NewGroup(ctx, model, users, store, defaultPortion)
	default:
		return nil, fmt.Errorf("account %s has unknown kind %q", model.ID, model.Kind)
	}
}
