package service

import (
	"context"
	"fmt"
	"strings"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const defaultBlockMessage = "Your account has been blocked by an administrator."

type NotificationService struct {
	notes     NotificationStore
	accounts  AccountStore
	logs      AdminLogStore
	publisher Publisher
	notifier  Notifier
	now       clock
}

func NewNotificationService(notes NotificationStore, accounts AccountStore, logs AdminLogStore, publisher Publisher, notifier Notifier) *NotificationService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &NotificationService{
		notes:     notes,
		accounts:  accounts,
		logs:      logs,
		publisher: publisher,
		notifier:  notifier,
		now:       utcNow,
	}
}

func (s *NotificationService) AdminFeed(ctx context.Context) ([]domain.Notification, error) {
	return s.notes.ListAdminFeed(ctx)
}

func (s *NotificationService) UserFeed(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.notes.ListUserFeed(ctx, userID)
}

func (s *NotificationService) AdminUnreadCount(ctx context.Context) (int64, error) {
	return s.notes.CountUnreadAdmin(ctx)
}

func (s *NotificationService) UserInbox(ctx context.Context, userID string) ([]domain.Notification, error) {
	feed, err := s.notes.ListUserFeed(ctx, userID)
	if err != nil {
		return nil, err
	}
	inbox := make([]domain.Notification, 0, len(feed))
	for _, n := range feed {
		if n.UserFacing() {
			inbox = append(inbox, n)
		}
	}
	return inbox, nil
}

func (s *NotificationService) UserUnreadCount(ctx context.Context, userID string) (int64, error) {
	inbox, err := s.UserInbox(ctx, userID)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, n := range inbox {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// UnblockUser restores a blocked account and tells the user. The role change
// is the operation's result; the notification is best effort.
func (s *NotificationService) UnblockUser(ctx context.Context, userID, adminID string) error {
	userID = strings.TrimSpace(userID)
	if err := s.accounts.SetUserRole(ctx, userID, domain.RoleBlocked, domain.RoleUser); err != nil {
		return fmt.Errorf("unblock user %s: %w", userID, err)
	}
	commonlog.Infof("event=account_unblock action=set_role status=ok user_id=%s admin_id=%s", userID, adminID)

	n := domain.NewNotification(domain.NotificationUnblock, userID, domain.UnblockMessage, s.now())
	n.SentBy = adminID
	if _, err := s.create(ctx, n); err != nil {
		commonlog.Errorf("event=account_unblock action=notify status=failed user_id=%s error=%v", userID, err)
	}
	publishBestEffort(ctx, s.publisher, EventAccountUnblocked, map[string]any{"user_id": userID, "admin_id": adminID})
	recordAdminAction(ctx, s.logs, s.now, adminID, "unblock_user", userID, "")
	return nil
}

func (s *NotificationService) BlockUser(ctx context.Context, userID, adminID, reason string) error {
	userID = strings.TrimSpace(userID)
	if err := s.accounts.SetUserRole(ctx, userID, domain.RoleUser, domain.RoleBlocked); err != nil {
		return fmt.Errorf("block user %s: %w", userID, err)
	}
	commonlog.Infof("event=account_block action=set_role status=ok user_id=%s admin_id=%s", userID, adminID)

	message := strings.TrimSpace(reason)
	if message == "" {
		message = defaultBlockMessage
	}
	n := domain.NewNotification(domain.NotificationWarning, userID, message, s.now())
	n.SentBy = adminID
	if _, err := s.create(ctx, n); err != nil {
		commonlog.Errorf("event=account_block action=notify status=failed user_id=%s error=%v", userID, err)
	}
	publishBestEffort(ctx, s.publisher, EventAccountBlocked, map[string]any{"user_id": userID, "admin_id": adminID, "reason": reason})
	recordAdminAction(ctx, s.logs, s.now, adminID, "block_user", userID, reason)
	return nil
}

func (s *NotificationService) DeleteAllAdminNotifications(ctx context.Context) (int64, error) {
	return s.notes.DeleteAdminFeed(ctx)
}

func (s *NotificationService) DeleteAllUserNotifications(ctx context.Context, userID string) (int64, error) {
	return s.notes.DeleteUserFeed(ctx, userID)
}

func (s *NotificationService) adminOwned(ctx context.Context, id string) (domain.Notification, error) {
	n, err := s.notes.GetNotification(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Notification{}, err
	}
	if !n.InAdminFeed() {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (s *NotificationService) userOwned(ctx context.Context, userID, id string) (domain.Notification, error) {
	n, err := s.notes.GetNotification(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Notification{}, err
	}
	if !n.InUserFeed(userID) {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (s *NotificationService) MarkAdminRead(ctx context.Context, id string) error {
	n, err := s.adminOwned(ctx, id)
	if err != nil {
		return err
	}
	return s.notes.MarkRead(ctx, n.ID)
}

func (s *NotificationService) MarkUserRead(ctx context.Context, userID, id string) error {
	n, err := s.userOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.notes.MarkRead(ctx, n.ID)
}

func (s *NotificationService) DeleteAdminNotification(ctx context.Context, id string) error {
	n, err := s.adminOwned(ctx, id)
	if err != nil {
		return err
	}
	return s.notes.DeleteNotification(ctx, n.ID)
}

func (s *NotificationService) DeleteUserNotification(ctx context.Context, userID, id string) error {
	n, err := s.userOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.notes.DeleteNotification(ctx, n.ID)
}

// AdminReply answers notification id on behalf of adminID. The reply is
// addressed to the user the original notification belongs to.
func (s *NotificationService) AdminReply(ctx context.Context, adminID, id, message string) (domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Notification{}, fmt.Errorf("message is required: %w", domain.ErrBadRequest)
	}
	original, err := s.notes.GetNotification(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Notification{}, err
	}
	reply := domain.NewNotification(domain.NotificationReply, original.UserID, message, s.now())
	reply.SentBy = adminID
	reply.ReplyTo = original.ID
	reply.OriginalNotificationID = original.ID
	saved, err := s.create(ctx, reply)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("reply to %s: %w", original.ID, err)
	}
	recordAdminAction(ctx, s.logs, s.now, adminID, "reply", original.UserID, saved.ID)
	return saved, nil
}

func (s *NotificationService) UserReply(ctx context.Context, userID, id, message string) (domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Notification{}, fmt.Errorf("message is required: %w", domain.ErrBadRequest)
	}
	original, err := s.userOwned(ctx, userID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	reply := domain.NewNotification(domain.NotificationReply, userID, message, s.now())
	reply.SentBy = userID
	reply.ReplyTo = original.ID
	reply.OriginalNotificationID = original.ID
	saved, err := s.create(ctx, reply)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("reply to %s: %w", original.ID, err)
	}
	return saved, nil
}

func (s *NotificationService) RequestUnblock(ctx context.Context, userID, message string) (domain.Notification, error) {
	return s.submit(ctx, domain.NotificationUnblockRequest, userID, message)
}

func (s *NotificationService) ReportIssue(ctx context.Context, userID, message string) (domain.Notification, error) {
	return s.submit(ctx, domain.NotificationIssue, userID, message)
}

func (s *NotificationService) submit(ctx context.Context, kind domain.NotificationType, userID, message string) (domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Notification{}, fmt.Errorf("message is required: %w", domain.ErrBadRequest)
	}
	n := domain.NewNotification(kind, userID, message, s.now())
	n.ReportedBy = userID
	saved, err := s.create(ctx, n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("submit %s: %w", kind, err)
	}
	return saved, nil
}

func (s *NotificationService) SendToUser(ctx context.Context, adminID, userID string, kind domain.NotificationType, message string) (domain.Notification, error) {
	message = strings.TrimSpace(message)
	userID = strings.TrimSpace(userID)
	if !domain.IsAdminSendable(kind) {
		return domain.Notification{}, fmt.Errorf("type %q cannot be sent: %w", kind, domain.ErrBadRequest)
	}
	if userID == "" || message == "" {
		return domain.Notification{}, fmt.Errorf("user id and message are required: %w", domain.ErrBadRequest)
	}
	if _, err := s.accounts.GetUserByID(ctx, userID); err != nil {
		return domain.Notification{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	n := domain.NewNotification(kind, userID, message, s.now())
	n.SentBy = adminID
	saved, err := s.create(ctx, n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("send %s to %s: %w", kind, userID, err)
	}
	recordAdminAction(ctx, s.logs, s.now, adminID, "notify_"+string(kind), userID, message)
	return saved, nil
}

func (s *NotificationService) create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	saved, err := s.notes.CreateNotification(ctx, n)
	if err != nil {
		return domain.Notification{}, err
	}
	publishBestEffort(ctx, s.publisher, EventNotificationCreated, saved)
	if s.notifier != nil {
		s.notifier.Deliver(saved)
	}
	return saved, nil
}

func recordAdminAction(ctx context.Context, logs AdminLogStore, now clock, adminID, action, targetUserID, detail string) {
	if logs == nil {
		return
	}
	_, err := logs.CreateAdminLog(ctx, domain.AdminLog{
		AdminID:      adminID,
		Action:       action,
		TargetUserID: targetUserID,
		Detail:       detail,
		CreatedAt:    now(),
	})
	if err != nil {
		commonlog.Errorf("event=admin_log action=create status=failed admin_id=%s admin_action=%s error=%v", adminID, action, err)
	}
}
