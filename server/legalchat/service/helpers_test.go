package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	commonauth "legalchat/server/common/auth"
	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
	"legalchat/server/legalchat/testutil"
)

type harness struct {
	store     *testutil.Store
	blobs     *testutil.BlobStore
	otps      *testutil.OTPStore
	assistant *testutil.Assistant
	publisher *testutil.Publisher
	notifier  *testutil.Notifier
	tokens    *commonauth.Service

	chats    *service.ChatService
	files    *service.FileService
	notes    *service.NotificationService
	accounts *service.AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	commonlog.Configure(commonlog.Options{Console: testWriter{t}, MinLevel: "WARN"})
	t.Cleanup(func() { commonlog.Configure(commonlog.Options{Console: io.Discard}) })

	h := &harness{
		store:     testutil.NewStore(),
		blobs:     testutil.NewBlobStore(),
		otps:      testutil.NewOTPStore(),
		assistant: &testutil.Assistant{Answer: "Here is what the law says."},
		publisher: &testutil.Publisher{},
		notifier:  &testutil.Notifier{},
		tokens:    commonauth.NewService("test-secret", 60),
	}
	h.chats = service.NewChatService(h.store, h.store, h.blobs, h.store, h.assistant, h.publisher)
	h.files = service.NewFileService(h.store, h.blobs)
	h.notes = service.NewNotificationService(h.store, h.store, h.store, h.publisher, h.notifier)
	h.accounts = service.NewAccountService(service.AccountDeps{
		Accounts:      h.store,
		Chats:         h.store,
		Files:         h.store,
		Blobs:         h.blobs,
		Notifications: h.store,
		AdminLogs:     h.store,
		OTPs:          h.otps,
		Tokens:        h.tokens,
		Publisher:     h.publisher,
	})
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (h *harness) seedUser(t *testing.T, id, name string, role domain.Role) domain.Account {
	t.Helper()
	a, err := h.store.CreateUser(context.Background(), domain.Account{
		ID:    id,
		Name:  name,
		Email: id + "@example.com",
		Role:  role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return a
}

func (h *harness) seedFile(t *testing.T, id, ownerID, name string, payload []byte) domain.File {
	t.Helper()
	ctx := context.Background()
	key := "files/" + ownerID + "/" + id
	if err := h.blobs.Put(ctx, key, "application/pdf", payload); err != nil {
		t.Fatal(err)
	}
	f, err := h.store.CreateFile(ctx, domain.File{
		ID:            id,
		OwnerUserID:   ownerID,
		OriginalName:  name,
		MimeType:      "application/pdf",
		Size:          int64(len(payload)),
		ExtractedText: "text of " + name,
		ObjectKey:     key,
	})
	if err != nil {
		t.Fatalf("seed file %s: %v", id, err)
	}
	return f
}

func (h *harness) seedChat(t *testing.T, chat domain.ChatSession) domain.ChatSession {
	t.Helper()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		chat.UpdatedAt = chat.CreatedAt
	}
	saved, err := h.store.CreateChat(context.Background(), chat)
	if err != nil {
		t.Fatalf("seed chat %s: %v", chat.ID, err)
	}
	return saved
}
