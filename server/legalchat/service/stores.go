package service

import (
	"context"
	"time"

	"legalchat/server/legalchat/domain"
)

type AccountStore interface {
	CreateUser(ctx context.Context, account domain.Account) (domain.Account, error)
	GetUserByID(ctx context.Context, id string) (domain.Account, error)
	GetUserByEmail(ctx context.Context, email string) (domain.Account, error)
	TouchUserLogin(ctx context.Context, id string, at time.Time) error
	ListUsers(ctx context.Context, limit int) ([]domain.Account, error)
	UpdateUserName(ctx context.Context, id, name string) error
	UpdateUserPassword(ctx context.Context, id, hash string) error
	SetUserRole(ctx context.Context, id string, from, to domain.Role) error
	DeleteUser(ctx context.Context, id string) error

	CreateAdmin(ctx context.Context, account domain.Account) (domain.Account, error)
	GetAdminByID(ctx context.Context, id string) (domain.Account, error)
	GetAdminByEmail(ctx context.Context, email string) (domain.Account, error)
	TouchAdminLogin(ctx context.Context, id string, at time.Time) error
}

// ChatStore persists chat sessions. CreateChat returns domain.ErrConflict
// when the owner already holds a copy of the same shared session.
type ChatStore interface {
	GetChat(ctx context.Context, id string) (domain.ChatSession, error)
	FindCopy(ctx context.Context, ownerID, originalSharedID string) (domain.ChatSession, error)
	CreateChat(ctx context.Context, chat domain.ChatSession) (domain.ChatSession, error)
	SaveChat(ctx context.Context, chat domain.ChatSession) error
	ListChats(ctx context.Context, ownerID string) ([]domain.ChatSession, error)
	DeleteChat(ctx context.Context, ownerID, id string) error
	DeleteChatsByOwner(ctx context.Context, ownerID string) (int64, error)
}

type FileStore interface {
	CreateFile(ctx context.Context, f domain.File) (domain.File, error)
	GetFile(ctx context.Context, id string) (domain.File, error)
	ListFiles(ctx context.Context, ownerID string) ([]domain.File, error)
	DeleteFile(ctx context.Context, ownerID, id string) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	GetNotification(ctx context.Context, id string) (domain.Notification, error)
	ListAdminFeed(ctx context.Context) ([]domain.Notification, error)
	ListUserFeed(ctx context.Context, userID string) ([]domain.Notification, error)
	CountUnreadAdmin(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAdminFeed(ctx context.Context) (int64, error)
	DeleteUserFeed(ctx context.Context, userID string) (int64, error)
}

type AdminLogStore interface {
	CreateAdminLog(ctx context.Context, entry domain.AdminLog) (domain.AdminLog, error)
	ListAdminLogs(ctx context.Context, limit int) ([]domain.AdminLog, error)
}

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Remove(ctx context.Context, key string) error
}

// OTPStore keeps single-use password reset codes. A code is discarded after
// domain.MaxResetAttempts failed Consume calls.
type OTPStore interface {
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, email, code string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type Notifier interface {
	Deliver(n domain.Notification)
}

type Assistant interface {
	Reply(ctx context.Context, history []domain.Message, attachment *domain.File) (string, error)
}

const (
	EventNotificationCreated    = "notification.created"
	EventChatCopied             = "chat.copied"
	EventAccountUnblocked       = "account.unblocked"
	EventAccountBlocked         = "account.blocked"
	EventPasswordResetRequested = "password_reset.requested"
)

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
