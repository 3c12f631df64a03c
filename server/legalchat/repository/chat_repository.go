package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

const chatColumns = `id, owner_user_id, owner_user_name, title, messages, created_at, updated_at, original_shared_id`

func scanChat(row pgx.Row) (domain.ChatSession, error) {
	var (
		chat     domain.ChatSession
		raw      []byte
		original *string
	)
	if err := row.Scan(&chat.ID, &chat.OwnerUserID, &chat.OwnerUserName, &chat.Title, &raw, &chat.CreatedAt, &chat.UpdatedAt, &original); err != nil {
		return domain.ChatSession{}, mapErr(err)
	}
	chat.OriginalSharedID = deref(original)
	chat.Messages = []domain.Message{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &chat.Messages); err != nil {
			return domain.ChatSession{}, fmt.Errorf("decode messages of chat %s: %w", chat.ID, err)
		}
	}
	return chat, nil
}

func encodeMessages(messages []domain.Message) (string, error) {
	if messages == nil {
		messages = []domain.Message{}
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *ChatRepository) GetChat(ctx context.Context, id string) (domain.ChatSession, error) {
	return scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id))
}

func (r *ChatRepository) FindCopy(ctx context.Context, ownerID, originalSharedID string) (domain.ChatSession, error) {
	return scanChat(r.db.QueryRow(ctx, `
		SELECT `+chatColumns+`
		FROM chats
		WHERE owner_user_id=$1 AND original_shared_id=$2
		ORDER BY created_at ASC
		LIMIT 1
	`, ownerID, originalSharedID))
}

// CreateChat inserts a session. A second copy of the same shared chat for the
// same owner is rejected with domain.ErrConflict.
func (r *ChatRepository) CreateChat(ctx context.Context, chat domain.ChatSession) (domain.ChatSession, error) {
	chat.ID = ensureID(chat.ID)
	messages, err := encodeMessages(chat.Messages)
	if err != nil {
		return chat, err
	}
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO chats(id, owner_user_id, owner_user_name, title, messages, created_at, updated_at, original_shared_id)
		VALUES($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT (owner_user_id, original_shared_id) WHERE original_shared_id IS NOT NULL DO NOTHING
	`, chat.ID, chat.OwnerUserID, chat.OwnerUserName, chat.Title, messages, chat.CreatedAt, chat.UpdatedAt, nullable(chat.OriginalSharedID))
	if err != nil {
		return chat, mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return chat, domain.ErrConflict
	}
	return chat, nil
}

func (r *ChatRepository) SaveChat(ctx context.Context, chat domain.ChatSession) error {
	messages, err := encodeMessages(chat.Messages)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `
		UPDATE chats
		SET title=$3, messages=$4::jsonb, updated_at=$5
		WHERE id=$1 AND owner_user_id=$2
	`, chat.ID, chat.OwnerUserID, chat.Title, messages, chat.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepository) ListChats(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	rows, err := r.db.Query(ctx, `SELECT `+chatColumns+` FROM chats WHERE owner_user_id=$1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ChatSession, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, chat)
	}
	return items, rows.Err()
}

func (r *ChatRepository) DeleteChat(ctx context.Context, ownerID, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM chats WHERE id=$1 AND owner_user_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepository) DeleteChatsByOwner(ctx context.Context, ownerID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM chats WHERE owner_user_id=$1`, ownerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
