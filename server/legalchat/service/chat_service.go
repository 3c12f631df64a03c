package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const autoTitleRunes = 40

type SendMessageInput struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
	Title   string `json:"title"`
	FileID  string `json:"fileId"`
}

type ChatService struct {
	chats     ChatStore
	files     FileStore
	blobs     BlobStore
	accounts  AccountStore
	assistant Assistant
	publisher Publisher
	now       clock
}

func NewChatService(chats ChatStore, files FileStore, blobs BlobStore, accounts AccountStore, assistant Assistant, publisher Publisher) *ChatService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &ChatService{
		chats:     chats,
		files:     files,
		blobs:     blobs,
		accounts:  accounts,
		assistant: assistant,
		publisher: publisher,
		now:       utcNow,
	}
}

func (s *ChatService) ListChats(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	return s.chats.ListChats(ctx, ownerID)
}

// GetChat returns a session owned by ownerID. Sessions of other users are
// reported as missing.
func (s *ChatService) GetChat(ctx context.Context, ownerID, chatID string) (domain.ChatSession, error) {
	chat, err := s.chats.GetChat(ctx, strings.TrimSpace(chatID))
	if err != nil {
		return domain.ChatSession{}, err
	}
	if chat.OwnerUserID != ownerID {
		return domain.ChatSession{}, domain.ErrNotFound
	}
	return chat, nil
}

func (s *ChatService) GetSharedChat(ctx context.Context, chatID string) (domain.ChatSession, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.ChatSession{}, fmt.Errorf("chat id is required: %w", domain.ErrBadRequest)
	}
	return s.chats.GetChat(ctx, chatID)
}

func (s *ChatService) SendMessage(ctx context.Context, ownerID string, input SendMessageInput) (domain.ChatSession, error) {
	text := strings.TrimSpace(input.Message)
	fileID := strings.TrimSpace(input.FileID)
	if text == "" && fileID == "" {
		return domain.ChatSession{}, fmt.Errorf("message is required: %w", domain.ErrBadRequest)
	}

	account, err := s.accounts.GetUserByID(ctx, ownerID)
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("load account %s: %w", ownerID, err)
	}
	if account.Role != domain.RoleUser {
		return domain.ChatSession{}, fmt.Errorf("account %s is %s: %w", ownerID, account.Role, domain.ErrForbidden)
	}

	now := s.now()
	var chat domain.ChatSession
	isNew := strings.TrimSpace(input.ChatID) == ""
	if isNew {
		title := strings.TrimSpace(input.Title)
		if title == "" {
			title = titleFromMessage(text)
		}
		chat = domain.NewChatSession(account, title, now)
		chat.ID = uuid.NewString()
	} else {
		chat, err = s.GetChat(ctx, ownerID, input.ChatID)
		if err != nil {
			return domain.ChatSession{}, err
		}
	}

	userMessage := domain.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: now,
	}
	var attachment *domain.File
	if fileID != "" {
		f, err := s.files.GetFile(ctx, fileID)
		if err != nil {
			return domain.ChatSession{}, fmt.Errorf("load attachment %s: %w", fileID, err)
		}
		if f.OwnerUserID != ownerID {
			return domain.ChatSession{}, domain.ErrNotFound
		}
		userMessage.FileID = f.ID
		userMessage.FileName = f.OriginalName
		attachment = &f
	}

	history := append(chat.CloneMessages(), userMessage)
	reply, err := s.assistant.Reply(ctx, history, attachment)
	if err != nil {
		var assistantErr *domain.AssistantError
		if !errors.As(err, &assistantErr) {
			err = &domain.AssistantError{Model: "unknown", Err: err}
		}
		commonlog.Errorf("event=chat_send action=assistant_reply status=failed chat_id=%s user_id=%s error=%v", chat.ID, ownerID, err)
		return domain.ChatSession{}, err
	}

	chat.Messages = append(history, domain.Message{
		ID:        uuid.NewString(),
		Text:      reply,
		Sender:    domain.SenderBot,
		Timestamp: s.now(),
	})
	chat.UpdatedAt = s.now()

	if isNew {
		chat, err = s.chats.CreateChat(ctx, chat)
	} else {
		err = s.chats.SaveChat(ctx, chat)
	}
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("save chat %s: %w", chat.ID, err)
	}
	return chat, nil
}

func (s *ChatService) RenameChat(ctx context.Context, ownerID, chatID, title string) (domain.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.ChatSession{}, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	chat, err := s.GetChat(ctx, ownerID, chatID)
	if err != nil {
		return domain.ChatSession{}, err
	}
	chat.Title = title
	chat.UpdatedAt = s.now()
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return domain.ChatSession{}, fmt.Errorf("rename chat %s: %w", chat.ID, err)
	}
	return chat, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, ownerID, chatID string) error {
	chat, err := s.GetChat(ctx, ownerID, chatID)
	if err != nil {
		return err
	}
	if err := s.chats.DeleteChat(ctx, ownerID, chat.ID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chat.ID, err)
	}
	seen := map[string]struct{}{}
	for _, m := range chat.Messages {
		if m.FileID == "" {
			continue
		}
		if _, ok := seen[m.FileID]; ok {
			continue
		}
		seen[m.FileID] = struct{}{}
		f, err := s.files.GetFile(ctx, m.FileID)
		if err != nil || f.OwnerUserID != ownerID {
			continue
		}
		if err := removeFile(ctx, s.files, s.blobs, f); err != nil {
			commonlog.Warnf("event=chat_delete action=remove_file status=failed chat_id=%s file_id=%s error=%v", chat.ID, f.ID, err)
		}
	}
	return nil
}

// CopyChat gives requesterID a private continuation of another session.
// Repeated calls return the same copy; the source is never modified.
// Blocked accounts are refused like they are for SendMessage.
func (s *ChatService) CopyChat(ctx context.Context, requesterID, sourceID string) (domain.ChatSession, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return domain.ChatSession{}, fmt.Errorf("chat id is required: %w", domain.ErrBadRequest)
	}
	requester, err := s.accounts.GetUserByID(ctx, requesterID)
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("load requester %s: %w", requesterID, err)
	}
	if requester.Role != domain.RoleUser {
		return domain.ChatSession{}, fmt.Errorf("account %s is %s: %w", requesterID, requester.Role, domain.ErrForbidden)
	}
	source, err := s.chats.GetChat(ctx, sourceID)
	if err != nil {
		return domain.ChatSession{}, fmt.Errorf("load shared chat %s: %w", sourceID, err)
	}

	existing, err := s.chats.FindCopy(ctx, requesterID, source.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ChatSession{}, fmt.Errorf("find copy of %s: %w", source.ID, err)
	}

	title := source.Title
	if strings.TrimSpace(title) == "" {
		title = domain.DefaultCopyTitle
	}
	copied := domain.NewChatSession(requester, title, s.now())
	copied.ID = uuid.NewString()
	copied.OriginalSharedID = source.ID
	copied.Messages = source.CloneMessages()

	var created []domain.File
	for i := range copied.Messages {
		msg := &copied.Messages[i]
		if msg.FileID == "" {
			continue
		}
		f, err := s.copyFile(ctx, requesterID, msg.FileID)
		if err != nil {
			commonlog.Warnf("event=chat_copy action=copy_file status=failed source_chat_id=%s file_id=%s error=%v", source.ID, msg.FileID, err)
			msg.FileID = ""
			if msg.FileName != "" {
				msg.FileName += domain.FileCopyFailedNote
			}
			continue
		}
		msg.FileID = f.ID
		created = append(created, f)
	}

	saved, err := s.chats.CreateChat(ctx, copied)
	if err != nil {
		s.discardFiles(ctx, created)
		if errors.Is(err, domain.ErrConflict) {
			winner, findErr := s.chats.FindCopy(ctx, requesterID, source.ID)
			if findErr != nil {
				return domain.ChatSession{}, fmt.Errorf("load concurrent copy of %s: %w", source.ID, findErr)
			}
			commonlog.Infof("event=chat_copy action=create status=raced source_chat_id=%s chat_id=%s", source.ID, winner.ID)
			return winner, nil
		}
		return domain.ChatSession{}, fmt.Errorf("create copy of %s: %w", source.ID, err)
	}

	commonlog.Infof("event=chat_copy action=create status=ok source_chat_id=%s chat_id=%s user_id=%s files=%d", source.ID, saved.ID, requesterID, len(created))
	publishBestEffort(ctx, s.publisher, EventChatCopied, map[string]any{
		"chat_id":        saved.ID,
		"source_chat_id": source.ID,
		"owner_user_id":  requesterID,
	})
	return saved, nil
}

func (s *ChatService) copyFile(ctx context.Context, ownerID, fileID string) (domain.File, error) {
	src, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return domain.File{}, err
	}
	dst := domain.File{
		ID:             uuid.NewString(),
		OwnerUserID:    ownerID,
		OriginalName:   src.OriginalName,
		MimeType:       src.MimeType,
		Size:           src.Size,
		ExtractedText:  src.ExtractedText,
		OriginalFileID: src.ID,
	}
	dst.ObjectKey = objectKey(ownerID, dst.ID)
	if err := s.blobs.Copy(ctx, src.ObjectKey, dst.ObjectKey); err != nil {
		return domain.File{}, err
	}
	if src.PreviewKey != "" {
		key := previewKey(ownerID, dst.ID)
		if err := s.blobs.Copy(ctx, src.PreviewKey, key); err != nil {
			commonlog.Warnf("event=chat_copy action=copy_preview status=failed file_id=%s error=%v", src.ID, err)
		} else {
			dst.PreviewKey = key
		}
	}
	saved, err := s.files.CreateFile(ctx, dst)
	if err != nil {
		_ = s.blobs.Remove(ctx, dst.ObjectKey)
		_ = s.blobs.Remove(ctx, dst.PreviewKey)
		return domain.File{}, err
	}
	return saved, nil
}

func (s *ChatService) discardFiles(ctx context.Context, files []domain.File) {
	for _, f := range files {
		if err := removeFile(ctx, s.files, s.blobs, f); err != nil {
			commonlog.Warnf("event=chat_copy action=discard_file status=failed file_id=%s error=%v", f.ID, err)
		}
	}
}

func titleFromMessage(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > autoTitleRunes {
		runes = runes[:autoTitleRunes]
	}
	return strings.TrimSpace(string(runes))
}
