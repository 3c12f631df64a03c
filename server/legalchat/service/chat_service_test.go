package service_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedSharedChat(t *testing.T, h *harness) domain.ChatSession {
	t.Helper()
	h.seedUser(t, "alice", "Alice", domain.RoleUser)
	h.seedUser(t, "bob", "Bob", domain.RoleUser)
	h.seedFile(t, "f1", "alice", "nda.pdf", []byte("%PDF nda"))
	return h.seedChat(t, domain.ChatSession{
		ID:            "c1",
		OwnerUserID:   "alice",
		OwnerUserName: "Alice",
		Title:         "NDA review",
		Messages: []domain.Message{
			{ID: "m1", Text: "Is this NDA fine?", Sender: domain.SenderUser, Timestamp: baseTime, FileID: "f1", FileName: "nda.pdf"},
			{ID: "m2", Text: "Mostly, check clause 4.", Sender: domain.SenderBot, Timestamp: baseTime.Add(time.Second)},
		},
	})
}

func TestCopyChatCreatesPrivateContinuation(t *testing.T) {
	h := newHarness(t)
	source := seedSharedChat(t, h)
	ctx := context.Background()

	copied, err := h.chats.CopyChat(ctx, "bob", "c1")
	if err != nil {
		t.Fatalf("CopyChat() error = %v", err)
	}
	if copied.ID == source.ID {
		t.Fatalf("copy reused the source id")
	}
	if copied.OwnerUserID != "bob" || copied.OwnerUserName != "Bob" {
		t.Errorf("owner = %s/%s, want bob/Bob", copied.OwnerUserID, copied.OwnerUserName)
	}
	if copied.OriginalSharedID != "c1" {
		t.Errorf("OriginalSharedID = %q, want c1", copied.OriginalSharedID)
	}
	if copied.Title != "NDA review" {
		t.Errorf("Title = %q, want NDA review", copied.Title)
	}
	if len(copied.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(copied.Messages))
	}
	if copied.Messages[0].ID != "m1" || copied.Messages[0].Text != source.Messages[0].Text || !copied.Messages[1].Timestamp.Equal(source.Messages[1].Timestamp) {
		t.Errorf("message content was not preserved: %+v", copied.Messages)
	}

	newFileID := copied.Messages[0].FileID
	if newFileID == "" || newFileID == "f1" {
		t.Fatalf("file reference = %q, want a fresh file id", newFileID)
	}
	f, err := h.store.GetFile(ctx, newFileID)
	if err != nil {
		t.Fatalf("GetFile(copy) error = %v", err)
	}
	if f.OwnerUserID != "bob" || f.OriginalFileID != "f1" || f.OriginalName != "nda.pdf" || f.ExtractedText != "text of nda.pdf" {
		t.Errorf("copied file = %+v", f)
	}
	data, err := h.blobs.Get(ctx, f.ObjectKey)
	if err != nil || string(data) != "%PDF nda" {
		t.Errorf("copied blob = %q, %v", data, err)
	}
	if got := h.publisher.Keys(); len(got) != 1 || got[0] != service.EventChatCopied {
		t.Errorf("published %v, want [%s]", got, service.EventChatCopied)
	}
}

func TestCopyChatIsIdempotent(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	first, err := h.chats.CopyChat(ctx, "bob", "c1")
	if err != nil {
		t.Fatal(err)
	}
	filesAfterFirst := h.store.FileCount()
	second, err := h.chats.CopyChat(ctx, "bob", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("second copy id = %s, want %s", second.ID, first.ID)
	}
	if h.store.ChatCount() != 2 {
		t.Errorf("ChatCount() = %d, want 2", h.store.ChatCount())
	}
	if h.store.FileCount() != filesAfterFirst {
		t.Errorf("second call created files: %d -> %d", filesAfterFirst, h.store.FileCount())
	}
}

func TestCopyChatLeavesSourceUntouched(t *testing.T) {
	h := newHarness(t)
	source := seedSharedChat(t, h)
	ctx := context.Background()
	sourceFile, _ := h.store.GetFile(ctx, "f1")

	if _, err := h.chats.CopyChat(ctx, "bob", "c1"); err != nil {
		t.Fatal(err)
	}

	after, err := h.store.GetChat(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(source, after) {
		t.Errorf("source changed:\nbefore %+v\nafter  %+v", source, after)
	}
	fileAfter, _ := h.store.GetFile(ctx, "f1")
	if !reflect.DeepEqual(sourceFile, fileAfter) {
		t.Errorf("source file changed: %+v", fileAfter)
	}
	if !h.blobs.Has(sourceFile.ObjectKey) {
		t.Errorf("source blob removed")
	}
}

func TestCopyChatIsolatesFileFailures(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", "Alice", domain.RoleUser)
	h.seedUser(t, "bob", "Bob", domain.RoleUser)
	h.seedFile(t, "ok", "alice", "lease.pdf", []byte("lease"))
	h.seedFile(t, "broken", "alice", "terms.pdf", []byte("terms"))
	h.seedChat(t, domain.ChatSession{
		ID:          "c1",
		OwnerUserID: "alice",
		Title:       "Docs",
		Messages: []domain.Message{
			{ID: "m1", Text: "a", Sender: domain.SenderUser, FileID: "ok", FileName: "lease.pdf"},
			{ID: "m2", Text: "b", Sender: domain.SenderUser, FileID: "broken", FileName: "terms.pdf"},
			{ID: "m3", Text: "c", Sender: domain.SenderUser, FileID: "missing", FileName: "policy.pdf"},
			{ID: "m4", Text: "d", Sender: domain.SenderUser, FileID: "missing"},
		},
	})
	h.blobs.CopyErr = func(src, _ string) error {
		if strings.HasSuffix(src, "/broken") {
			return errors.New("copy refused")
		}
		return nil
	}

	copied, err := h.chats.CopyChat(context.Background(), "bob", "c1")
	if err != nil {
		t.Fatalf("CopyChat() error = %v", err)
	}
	msgs := copied.Messages
	if msgs[0].FileID == "" || msgs[0].FileID == "ok" || msgs[0].FileName != "lease.pdf" {
		t.Errorf("successful file = %+v", msgs[0])
	}
	if msgs[1].FileID != "" || msgs[1].FileName != "terms.pdf (file copy failed)" {
		t.Errorf("failed blob copy = %+v", msgs[1])
	}
	if msgs[2].FileID != "" || msgs[2].FileName != "policy.pdf (file copy failed)" {
		t.Errorf("missing file = %+v", msgs[2])
	}
	if msgs[3].FileID != "" || msgs[3].FileName != "" {
		t.Errorf("missing file without name = %+v", msgs[3])
	}
}

func TestCopyChatRecordInsertFailureIsPerMessage(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	h.store.CreateFileErr = func(domain.File) error { return errors.New("disk full") }

	copied, err := h.chats.CopyChat(context.Background(), "bob", "c1")
	if err != nil {
		t.Fatalf("CopyChat() error = %v", err)
	}
	if copied.Messages[0].FileID != "" || copied.Messages[0].FileName != "nda.pdf"+domain.FileCopyFailedNote {
		t.Errorf("message = %+v", copied.Messages[0])
	}
	if h.blobs.Len() != 1 {
		t.Errorf("orphan blobs left behind: %d objects", h.blobs.Len())
	}
}

func TestCopyChatMissingSource(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "bob", "Bob", domain.RoleUser)

	_, err := h.chats.CopyChat(context.Background(), "bob", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("CopyChat() error = %v, want ErrNotFound", err)
	}
	if h.store.ChatCount() != 0 {
		t.Errorf("ChatCount() = %d, want 0", h.store.ChatCount())
	}
}

func TestCopyChatRefusesBlockedRequester(t *testing.T) {
	h := newHarness(t)
	source := seedSharedChat(t, h)
	h.seedUser(t, "mallory", "Mallory", domain.RoleBlocked)

	_, err := h.chats.CopyChat(context.Background(), "mallory", source.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("CopyChat() error = %v, want ErrForbidden", err)
	}
	if _, err := h.store.FindCopy(context.Background(), "mallory", source.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("FindCopy() error = %v, want ErrNotFound", err)
	}
	if got := h.blobs.Len(); got != 1 {
		t.Errorf("blob count = %d, want only the source file", got)
	}
}

func TestCopyChatDefaultsTitle(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", "Alice", domain.RoleUser)
	h.seedUser(t, "bob", "Bob", domain.RoleUser)
	h.seedChat(t, domain.ChatSession{ID: "c1", OwnerUserID: "alice"})

	copied, err := h.chats.CopyChat(context.Background(), "bob", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if copied.Title != domain.DefaultCopyTitle {
		t.Errorf("Title = %q, want %q", copied.Title, domain.DefaultCopyTitle)
	}
	if copied.Messages == nil || len(copied.Messages) != 0 {
		t.Errorf("Messages = %#v, want empty slice", copied.Messages)
	}
}

func TestCopyChatLosingRaceReturnsWinner(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	var winner domain.ChatSession
	raced := false
	h.store.BeforeCreateChat = func(domain.ChatSession) {
		if raced {
			return
		}
		raced = true
		var err error
		winner, err = h.store.CreateChat(ctx, domain.ChatSession{ID: "winner", OwnerUserID: "bob", OriginalSharedID: "c1", Title: "NDA review"})
		if err != nil {
			t.Errorf("seed winner: %v", err)
		}
	}

	got, err := h.chats.CopyChat(ctx, "bob", "c1")
	if err != nil {
		t.Fatalf("CopyChat() error = %v", err)
	}
	if got.ID != winner.ID {
		t.Errorf("CopyChat() id = %s, want winner %s", got.ID, winner.ID)
	}
	if h.store.FileCount() != 1 {
		t.Errorf("loser's file copies were kept: FileCount() = %d", h.store.FileCount())
	}
	if h.blobs.Len() != 1 {
		t.Errorf("loser's blobs were kept: %d objects", h.blobs.Len())
	}
}

func TestCopyChatConcurrentCallersShareOneCopy(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := h.chats.CopyChat(ctx, "bob", "c1")
			if err != nil {
				t.Errorf("CopyChat() error = %v", err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("callers saw different copies: %v", ids)
		}
	}
	if h.store.ChatCount() != 2 {
		t.Errorf("ChatCount() = %d, want 2", h.store.ChatCount())
	}
	if h.store.FileCount() != 2 {
		t.Errorf("FileCount() = %d, want source plus one copy", h.store.FileCount())
	}
}

func TestCopyOwnChatCreatesCopy(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)

	copied, err := h.chats.CopyChat(context.Background(), "alice", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if copied.ID == "c1" || copied.OriginalSharedID != "c1" {
		t.Errorf("self copy = %+v", copied)
	}
}

func TestSendMessageStartsChat(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", "Alice", domain.RoleUser)
	long := strings.Repeat("é", 50)

	chat, err := h.chats.SendMessage(context.Background(), "alice", service.SendMessageInput{Message: long})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := []rune(chat.Title); len(got) != 40 {
		t.Errorf("title has %d runes, want 40", len(got))
	}
	if len(chat.Messages) != 2 || chat.Messages[0].Sender != domain.SenderUser || chat.Messages[1].Sender != domain.SenderBot {
		t.Fatalf("messages = %+v", chat.Messages)
	}
	if chat.Messages[1].Text != "Here is what the law says." {
		t.Errorf("bot text = %q", chat.Messages[1].Text)
	}
	stored, err := h.chats.GetChat(context.Background(), "alice", chat.ID)
	if err != nil || len(stored.Messages) != 2 {
		t.Errorf("stored chat = %+v, %v", stored, err)
	}
}

func TestSendMessageAppendsToExistingChat(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)

	chat, err := h.chats.SendMessage(context.Background(), "alice", service.SendMessageInput{ChatID: "c1", Message: "And clause 5?"})
	if err != nil {
		t.Fatal(err)
	}
	if len(chat.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(chat.Messages))
	}
	if got := h.assistant.LastHistory(); len(got) != 3 || got[2].Text != "And clause 5?" {
		t.Errorf("assistant history = %+v", got)
	}
	if chat.Title != "NDA review" {
		t.Errorf("title changed to %q", chat.Title)
	}
}

func TestSendMessageAttachesOwnedFile(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	chat, err := h.chats.SendMessage(ctx, "alice", service.SendMessageInput{Message: "Review", FileID: "f1"})
	if err != nil {
		t.Fatal(err)
	}
	if chat.Messages[0].FileID != "f1" || chat.Messages[0].FileName != "nda.pdf" {
		t.Errorf("attachment = %+v", chat.Messages[0])
	}
	if _, err := h.chats.SendMessage(ctx, "bob", service.SendMessageInput{Message: "Review", FileID: "f1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign attachment error = %v, want ErrNotFound", err)
	}
}

func TestSendMessageRejectsBlockedAccount(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "mallory", "Mallory", domain.RoleBlocked)

	_, err := h.chats.SendMessage(context.Background(), "mallory", service.SendMessageInput{Message: "hi"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("SendMessage() error = %v, want ErrForbidden", err)
	}
	if h.assistant.Calls() != 0 {
		t.Errorf("assistant called %d times", h.assistant.Calls())
	}
}

func TestSendMessageAssistantFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	h.assistant.Err = errors.New("quota exceeded")
	ctx := context.Background()

	_, err := h.chats.SendMessage(ctx, "alice", service.SendMessageInput{ChatID: "c1", Message: "hello"})
	if !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("SendMessage() error = %v, want ErrAssistantUnavailable", err)
	}
	chat, _ := h.store.GetChat(ctx, "c1")
	if len(chat.Messages) != 2 {
		t.Errorf("existing chat gained messages: %d", len(chat.Messages))
	}

	before := h.store.ChatCount()
	if _, err := h.chats.SendMessage(ctx, "alice", service.SendMessageInput{Message: "new"}); err == nil {
		t.Fatal("expected an error")
	}
	if h.store.ChatCount() != before {
		t.Errorf("failed send created a chat")
	}
}

func TestGetChatHidesForeignSessions(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	if _, err := h.chats.GetChat(ctx, "bob", "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetChat(bob) error = %v, want ErrNotFound", err)
	}
	shared, err := h.chats.GetSharedChat(ctx, "c1")
	if err != nil || shared.ID != "c1" {
		t.Errorf("GetSharedChat() = %+v, %v", shared, err)
	}
}

func TestRenameChat(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()

	chat, err := h.chats.RenameChat(ctx, "alice", "c1", "  Contract questions ")
	if err != nil {
		t.Fatal(err)
	}
	if chat.Title != "Contract questions" {
		t.Errorf("Title = %q", chat.Title)
	}
	if _, err := h.chats.RenameChat(ctx, "alice", "c1", " "); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("empty title error = %v, want ErrBadRequest", err)
	}
	if _, err := h.chats.RenameChat(ctx, "bob", "c1", "mine"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign rename error = %v, want ErrNotFound", err)
	}
}

func TestDeleteChatRemovesOwnedFiles(t *testing.T) {
	h := newHarness(t)
	seedSharedChat(t, h)
	ctx := context.Background()
	copied, err := h.chats.CopyChat(ctx, "bob", "c1")
	if err != nil {
		t.Fatal(err)
	}
	copyFileID := copied.Messages[0].FileID

	if err := h.chats.DeleteChat(ctx, "bob", copied.ID); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}
	if _, err := h.store.GetFile(ctx, copyFileID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("copied file survived: %v", err)
	}
	if _, err := h.store.GetFile(ctx, "f1"); err != nil {
		t.Errorf("source file removed: %v", err)
	}
	if err := h.chats.DeleteChat(ctx, "bob", "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign delete error = %v, want ErrNotFound", err)
	}
}

func TestListChatsNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", "Alice", domain.RoleUser)
	h.seedChat(t, domain.ChatSession{ID: "old", OwnerUserID: "alice", CreatedAt: baseTime, UpdatedAt: baseTime})
	h.seedChat(t, domain.ChatSession{ID: "new", OwnerUserID: "alice", CreatedAt: baseTime, UpdatedAt: baseTime.Add(time.Hour)})
	h.seedChat(t, domain.ChatSession{ID: "other", OwnerUserID: "bob", CreatedAt: baseTime, UpdatedAt: baseTime})

	chats, err := h.chats.ListChats(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[0].ID != "new" || chats[1].ID != "old" {
		t.Errorf("ListChats() = %+v", chats)
	}
}
