package domain

import "time"

type Role string
type Sender string
type NotificationType string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleBlocked Role = "blocked"
)

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

const (
	NotificationUnblockRequest NotificationType = "unblock_request"
	NotificationIssue          NotificationType = "issue"
	NotificationReply          NotificationType = "reply"
	NotificationReport         NotificationType = "report"
	NotificationWarning        NotificationType = "warning"
	NotificationInfo           NotificationType = "info"
	NotificationUnblock        NotificationType = "unblock"
	// NotificationLegacy is stored by older clients that never set a type.
	NotificationLegacy NotificationType = ""
)

const (
	DefaultCopyTitle   = "Shared Chat Copy"
	DefaultChatTitle   = "New Chat"
	FileCopyFailedNote = " (file copy failed)"
	UnblockMessage     = "Your account has been unblocked. You can now access the chat again."

	// MaxResetAttempts wrong guesses burn a pending password reset code.
	MaxResetAttempts = 5
)

type Account struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (a Account) IsBlocked() bool {
	return a.Role == RoleBlocked
}

type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	FileID    string    `json:"fileId,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	IsTyping  bool      `json:"isTyping,omitempty"`
}

type ChatSession struct {
	ID               string    `json:"id"`
	OwnerUserID      string    `json:"ownerUserId"`
	OwnerUserName    string    `json:"ownerUserName"`
	Title            string    `json:"title"`
	Messages         []Message `json:"messages"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	OriginalSharedID string    `json:"originalSharedId,omitempty"`
}

func NewChatSession(owner Account, title string, now time.Time) ChatSession {
	if title == "" {
		title = DefaultChatTitle
	}
	return ChatSession{
		OwnerUserID:   owner.ID,
		OwnerUserName: owner.Name,
		Title:         title,
		Messages:      []Message{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (c ChatSession) CloneMessages() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

type File struct {
	ID             string    `json:"id"`
	OwnerUserID    string    `json:"ownerUserId"`
	OriginalName   string    `json:"originalName"`
	MimeType       string    `json:"mimeType"`
	Size           int64     `json:"size"`
	Data           string    `json:"data,omitempty"`
	ExtractedText  string    `json:"extractedText,omitempty"`
	ObjectKey      string    `json:"-"`
	PreviewKey     string    `json:"-"`
	HasPreview     bool      `json:"hasPreview"`
	CreatedAt      time.Time `json:"createdAt"`
	OriginalFileID string    `json:"originalFileId,omitempty"`
}

type Notification struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"userId,omitempty"`
	Message                string           `json:"message"`
	Type                   NotificationType `json:"type"`
	Read                   bool             `json:"read"`
	CreatedAt              time.Time        `json:"createdAt"`
	SentBy                 string           `json:"sentBy,omitempty"`
	ReportedBy             string           `json:"reportedBy,omitempty"`
	OriginalNotificationID string           `json:"originalNotificationId,omitempty"`
	ReplyTo                string           `json:"replyTo,omitempty"`
}

func NewNotification(kind NotificationType, userID, message string, now time.Time) Notification {
	return Notification{
		UserID:    userID,
		Message:   message,
		Type:      kind,
		CreatedAt: now,
	}
}

type AdminLog struct {
	ID           string    `json:"id"`
	AdminID      string    `json:"adminId"`
	Action       string    `json:"action"`
	TargetUserID string    `json:"targetUserId,omitempty"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"createdAt"`
}
