package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/repository/migrations"
)

// newTestPool connects to LEGALCHAT_TEST_POSTGRES_DSN; the tests are skipped
// when it is unset. Every table is truncated before each test.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("LEGALCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEGALCHAT_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, _, err := migrations.ApplyPool(pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE users, admins, chats, files, notifications, admin_logs`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestMigrationsReleaseConnections(t *testing.T) {
	pool := newTestPool(t)
	for i := 0; i < 2; i++ {
		version, dirty, err := migrations.ApplyPool(pool)
		if err != nil {
			t.Fatalf("ApplyPool() run %d error = %v", i, err)
		}
		if version == 0 || dirty {
			t.Fatalf("ApplyPool() run %d = (%d, %t), want a clean non-zero version", i, version, dirty)
		}
	}
	if got := pool.Stat().AcquiredConns(); got != 0 {
		t.Fatalf("AcquiredConns() = %d after migrating, want 0", got)
	}
}

func TestChatRepositoryCopyUniqueness(t *testing.T) {
	pool := newTestPool(t)
	repo := NewChatRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	source, err := repo.CreateChat(ctx, domain.ChatSession{
		OwnerUserID: "alice", Title: "NDA review", CreatedAt: now, UpdatedAt: now,
		Messages: []domain.Message{{ID: "m1", Text: "hi", Sender: domain.SenderUser, Timestamp: now, FileID: "f1"}},
	})
	if err != nil {
		t.Fatalf("CreateChat(source) error = %v", err)
	}

	first, err := repo.CreateChat(ctx, domain.ChatSession{OwnerUserID: "bob", OriginalSharedID: source.ID, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateChat(copy) error = %v", err)
	}
	_, err = repo.CreateChat(ctx, domain.ChatSession{OwnerUserID: "bob", OriginalSharedID: source.ID, CreatedAt: now, UpdatedAt: now})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second copy error = %v, want ErrConflict", err)
	}

	found, err := repo.FindCopy(ctx, "bob", source.ID)
	if err != nil {
		t.Fatalf("FindCopy() error = %v", err)
	}
	if found.ID != first.ID {
		t.Errorf("FindCopy() id = %s, want %s", found.ID, first.ID)
	}

	got, err := repo.GetChat(ctx, source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 1 || got.Messages[0].FileID != "f1" {
		t.Errorf("messages round trip = %+v", got.Messages)
	}
}

func TestNotificationRepositoryFeeds(t *testing.T) {
	pool := newTestPool(t)
	repo := NewNotificationRepository(pool)
	ctx := context.Background()

	seed := []domain.Notification{
		{Type: domain.NotificationUnblockRequest, UserID: "u1"},
		{Type: domain.NotificationIssue, UserID: "u1"},
		{Type: domain.NotificationReply, UserID: "u1"},
		{Type: domain.NotificationReport, UserID: "u1"},
		{Type: domain.NotificationWarning, UserID: "u1"},
		{Type: domain.NotificationInfo, UserID: "u1"},
		{Type: domain.NotificationUnblock, UserID: "u1"},
		{Type: domain.NotificationUnblock},
		{Type: domain.NotificationLegacy},
	}
	for _, n := range seed {
		n.Message = string(n.Type)
		if _, err := repo.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification() error = %v", err)
		}
	}

	admin, err := repo.ListAdminFeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(admin) != 5 {
		t.Errorf("admin feed has %d items, want 5", len(admin))
	}
	for _, n := range admin {
		if !n.InAdminFeed() {
			t.Errorf("admin feed returned %+v", n)
		}
	}

	user, err := repo.ListUserFeed(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(user) != 7 {
		t.Errorf("user feed has %d items, want 7", len(user))
	}

	removed, err := repo.DeleteAdminFeed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 5 {
		t.Errorf("DeleteAdminFeed() = %d, want 5", removed)
	}
}

func TestUserRepositorySetUserRole(t *testing.T) {
	pool := newTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, domain.Account{Name: "Ada", Email: "ADA@example.com", PasswordHash: "x", Role: domain.RoleBlocked})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateUser(ctx, domain.Account{Name: "Ada2", Email: "ada@example.com", PasswordHash: "x", Role: domain.RoleUser}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}
	if err := repo.SetUserRole(ctx, u.ID, domain.RoleBlocked, domain.RoleUser); err != nil {
		t.Fatalf("SetUserRole() error = %v", err)
	}
	if err := repo.SetUserRole(ctx, u.ID, domain.RoleBlocked, domain.RoleUser); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second SetUserRole() error = %v, want ErrConflict", err)
	}
	if err := repo.SetUserRole(ctx, "missing", domain.RoleBlocked, domain.RoleUser); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetUserRole(missing) error = %v, want ErrNotFound", err)
	}
}
