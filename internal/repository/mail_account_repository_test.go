package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUpdateFetchDataSilentLeavesUpdatedAtAlone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewMailAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE mail_accounts SET fetch_data = $1 WHERE id = $2`)).
		WithArgs(`{"INBOX":"42"}`, "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFetchData(context.Background(), "acc-1", `{"INBOX":"42"}`, false); err != nil {
		t.Fatalf("UpdateFetchData: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateFetchDataNotifyingBumpsUpdatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewMailAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE mail_accounts SET fetch_data = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(`{}`, sqlmock.AnyArg(), "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFetchData(context.Background(), "acc-1", `{}`, true); err != nil {
		t.Fatalf("UpdateFetchData: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewMailAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM mail_accounts WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
