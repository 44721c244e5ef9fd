package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"arabia.app/internal/auth"
	"arabia.app/internal/maintenance"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return New(db), mock
}

var accountCols = []string{"id", "email", "username", "first_name", "last_name", "password_hash",
	"active", "refresh_token", "refresh_token_expires_at", "created_at", "updated_at"}

func TestFindByEmailLoadsRoles(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("from accounts where lower(email) = lower($1)")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow("01HZX", "a@example.com", "a@example.com", "Ada", "L", "hash", true, "tok", now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("from account_roles")).
		WithArgs("01HZX").
		WillReturnRows(sqlmock.NewRows([]string{"role_name"}).AddRow("User").AddRow("Manager"))

	acc, err := s.Accounts(context.Background()).FindByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if acc.ID != "01HZX" || acc.RefreshToken != "tok" || !acc.RefreshTokenExpiresAt.Equal(now) {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if len(acc.Roles) != 2 || acc.Roles[1] != "Manager" {
		t.Fatalf("roles = %v", acc.Roles)
	}
}

func TestFindByEmailMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("from accounts").WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := s.Accounts(context.Background()).FindByEmail(context.Background(), "x@example.com")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into accounts").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := s.Accounts(context.Background()).Create(context.Background(), &auth.Account{ID: "01HZX", Email: "a@example.com"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSwapRefreshTokenCompareAndSet(t *testing.T) {
	s, mock := newMockStore(t)
	exp := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("where id = $1 and refresh_token = $2")).
		WithArgs("01HZX", "old", "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("where id = $1 and refresh_token = $2")).
		WithArgs("01HZX", "old", "other", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	accounts := s.Accounts(context.Background())
	if err := accounts.SwapRefreshToken(context.Background(), "01HZX", "old", "new", exp); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	err := accounts.SwapRefreshToken(context.Background(), "01HZX", "old", "other", exp)
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("second swap should lose, got %v", err)
	}
}

func TestRoleCreateDuplicateIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into roles").
		WithArgs("User", "User role", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Roles(context.Background()).Create(context.Background(), &auth.Role{Name: "User", Description: "User role"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignRoleMissingRole(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into account_roles").
		WithArgs("01HZX", "Ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name, description, created_at from roles where lower(name) = lower($1)")).
		WithArgs("Ghost").
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at"}))

	err := s.Accounts(context.Background()).AssignRole(context.Background(), "01HZX", "Ghost")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindRoleReturnsStoredSpelling(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("from roles where lower(name) = lower($1)")).
		WithArgs("manager").
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at"}).
			AddRow("Manager", "Manager role", now))

	role, err := s.Roles(context.Background()).Find(context.Background(), " manager ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if role.Name != "Manager" || !role.CreatedAt.Equal(now) {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("insert into roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err := s.WithinTx(ctx, func(tx auth.Store) error {
		return tx.Roles(ctx).Create(ctx, &auth.Role{Name: "User", Description: "User role"})
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = s.WithinTx(ctx, func(auth.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestNilConnection(t *testing.T) {
	s := New(nil)
	if _, err := s.GetBusiness(context.Background(), 1); err == nil {
		t.Fatalf("expected error without connection")
	}
	if err := s.WithinTx(context.Background(), func(auth.Store) error { return nil }); err == nil {
		t.Fatalf("expected error without connection")
	}
}

var requestCols = []string{"id", "business_id", "service_id", "employee_id", "status", "requested_date",
	"scheduled_date", "completed_date", "description", "notes", "estimated_cost_cents",
	"actual_cost_cents", "created_at", "updated_at"}

func TestCreateAndGetRequest(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	est := maintenance.Money(12550)

	mock.ExpectQuery("insert into service_requests").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	r := &maintenance.Request{BusinessID: 1, ServiceID: 2, Status: maintenance.StatusPending,
		RequestedDate: now, Description: "leak", EstimatedCost: &est, CreatedAt: now}
	if err := s.CreateRequest(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID != 7 {
		t.Fatalf("id = %d", r.ID)
	}

	mock.ExpectQuery(regexp.QuoteMeta("from service_requests where id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow(int64(7), int64(1), int64(2), nil, "Pending", now, nil, nil, "leak", nil, int64(12550), nil, now, nil))
	got, err := s.GetRequest(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != maintenance.StatusPending || got.EmployeeID != nil || got.UpdatedAt != nil {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.EstimatedCost == nil || *got.EstimatedCost != est {
		t.Fatalf("estimated cost = %v", got.EstimatedCost)
	}
}

func TestListRequestsFilters(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("where business_id = $1 and status = $2 order by id")).
		WithArgs(int64(3), "Assigned").
		WillReturnRows(sqlmock.NewRows(requestCols))

	got, err := s.ListRequests(context.Background(), maintenance.RequestFilter{BusinessID: 3, Status: maintenance.StatusAssigned})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestDeleteBusinessWithRequests(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("delete from businesses").
		WithArgs(int64(1)).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	if err := s.DeleteBusiness(context.Background(), 1); !errors.Is(err, maintenance.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestDeleteMissingOffering(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("delete from services").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteOffering(context.Background(), 9); !errors.Is(err, maintenance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBusinessMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("from businesses where id").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.GetBusiness(context.Background(), 4); !errors.Is(err, maintenance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
