package account

import (
	"context"
	"testing"

	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type fakeUserStore struct {
	users map[string]*models.User
	teams map[string][]string
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetTeamUserIDs(_ context.Context, teamID string) ([]string, error) {
	return f.teams[teamID], nil
}

type fakeCursorStore struct {
	saves []savedCursor
}

type savedCursor struct {
	id        string
	fetchData string
	notify    bool
}

func (f *fakeCursorStore) UpdateFetchData(_ context.Context, id, fetchData string, notify bool) error {
	f.saves = append(f.saves, savedCursor{id: id, fetchData: fetchData, notify: notify})
	return nil
}

func personalModel() *models.MailAccount {
	userID := "u-1"
	return &models.MailAccount{
		ID:               "acc-1",
		Kind:             models.MailAccountKindPersonal,
		Host:             "imap.example.com",
		Security:         "imaps",
		Username:         "alice",
		MonitoredFolders: "INBOX, Archive",
		AssignedUserID:   &userID,
	}
}

func TestNewPersonalResolvesAssignedUser(t *testing.T) {
	teamID := "t-1"
	users := &fakeUserStore{users: map[string]*models.User{
		"u-1": {ID: "u-1", DefaultTeamID: &teamID},
	}}

	acct, err := NewPersonal(context.Background(), personalModel(), users, &fakeCursorStore{}, 0)
	if err != nil {
		t.Fatalf("NewPersonal: %v", err)
	}
	if got := acct.UserIDs(); len(got) != 1 || got[0] != "u-1" {
		t.Fatalf("expected assigned user link, got %v", got)
	}
	if got := acct.TeamIDs(); len(got) != 1 || got[0] != "t-1" {
		t.Fatalf("expected default team link, got %v", got)
	}
	if got := acct.Folders(); len(got) != 2 || got[1] != "Archive" {
		t.Fatalf("unexpected folders %v", got)
	}
}

func TestNewPersonalFailsWithoutResolvableUser(t *testing.T) {
	users := &fakeUserStore{users: map[string]*models.User{}}

	if _, err := NewPersonal(context.Background(), personalModel(), users, &fakeCursorStore{}, 0); err == nil {
		t.Fatal("expected construction to fail for missing assigned user")
	}

	model := personalModel()
	model.AssignedUserID = nil
	if _, err := NewPersonal(context.Background(), model, users, &fakeCursorStore{}, 0); err == nil {
		t.Fatal("expected construction to fail without assigned user id")
	}
}

func TestPortionLimitDefaults(t *testing.T) {
	users := &fakeUserStore{users: map[string]*models.User{"u-1": {ID: "u-1"}}}

	acct, err := NewPersonal(context.Background(), personalModel(), users, &fakeCursorStore{}, 0)
	if err != nil {
		t.Fatalf("NewPersonal: %v", err)
	}
	if acct.PortionLimit() != DefaultPortionLimit {
		t.Fatalf("expected default portion limit, got %d", acct.PortionLimit())
	}

	limit := 25
	model := personalModel()
	model.PortionLimit = &limit
	acct, err = NewPersonal(context.Background(), model, users, &fakeCursorStore{}, 0)
	if err != nil {
		t.Fatalf("NewPersonal: %v", err)
	}
	if acct.PortionLimit() != 25 {
		t.Fatalf("expected account override 25, got %d", acct.PortionLimit())
	}
}

func TestSaveCursorsIsSilentAndSkipsCleanState(t *testing.T) {
	users := &fakeUserStore{users: map[string]*models.User{"u-1": {ID: "u-1"}}}
	store := &fakeCursorStore{}

	acct, err := NewPersonal(context.Background(), personalModel(), users, store, 0)
	if err != nil {
		t.Fatalf("NewPersonal: %v", err)
	}

	if err := acct.SaveCursors(context.Background()); err != nil {
		t.Fatalf("SaveCursors: %v", err)
	}
	if len(store.saves) != 0 {
		t.Fatalf("expected no write for clean cursors, got %d", len(store.saves))
	}

	acct.SetFolderCursor("INBOX", "42")
	if err := acct.SaveCursors(context.Background()); err != nil {
		t.Fatalf("SaveCursors: %v", err)
	}
	if len(store.saves) != 1 {
		t.Fatalf("expected one write, got %d", len(store.saves))
	}
	saved := store.saves[0]
	if saved.notify {
		t.Fatal("cursor save must be silent")
	}
	if saved.id != "acc-1" || saved.fetchData != `{"INBOX":"42"}` {
		t.Fatalf("unexpected save %+v", saved)
	}

	// repeat save with no further changes is a no-op
	if err := acct.SaveCursors(context.Background()); err != nil {
		t.Fatalf("SaveCursors: %v", err)
	}
	if len(store.saves) != 1 {
		t.Fatalf("expected clean state after save, got %d writes", len(store.saves))
	}
}

func TestNewGroupGathersTeamMembers(t *testing.T) {
	teamID := "t-9"
	model := &models.MailAccount{
		ID:       "acc-2",
		Kind:     models.MailAccountKindGroup,
		Security: "imap",
		TeamID:   &teamID,
	}
	users := &fakeUserStore{teams: map[string][]string{"t-9": {"u-1", "u-2"}}}

	acct, err := NewGroup(context.Background(), model, users, &fakeCursorStore{}, 0)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if got := acct.UserIDs(); len(got) != 2 {
		t.Fatalf("expected team members, got %v", got)
	}
	if got := acct.TeamIDs(); len(got) != 1 || got[0] != "t-9" {
		t.Fatalf("expected owning team, got %v", got)
	}
	if got := acct.Folders(); len(got) != 1 || got[0] != "INBOX" {
		t.Fatalf("expected INBOX default, got %v", got)
	}
}

func TestFromModelRejectsUnknownKind(t *testing.T) {
	model := &models.MailAccount{ID: "acc-3", Kind: "shared"}
	if _, err := FromModel(context.Background(), model, &fakeUserStore{}, &fakeCursorStore{}, 0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
