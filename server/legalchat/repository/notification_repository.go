package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, message, COALESCE(type, ''), read, created_at, sent_by, reported_by, original_notification_id, reply_to`

// adminFeedFilter mirrors domain.Notification.InAdminFeed.
const adminFeedFilter = `(
	type IN ('unblock_request', 'issue', 'reply')
	OR type IS NULL OR type = ''
	OR (type = 'unblock' AND (user_id IS NULL OR user_id = ''))
)`

const userFeedFilter = `user_id = $1`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var (
		n                                            domain.Notification
		userID, sentBy, reportedBy, original, replyTo *string
	)
	err := row.Scan(&n.ID, &userID, &n.Message, &n.Type, &n.Read, &n.CreatedAt, &sentBy, &reportedBy, &original, &replyTo)
	if err != nil {
		return domain.Notification{}, mapErr(err)
	}
	n.UserID = deref(userID)
	n.SentBy = deref(sentBy)
	n.ReportedBy = deref(reportedBy)
	n.OriginalNotificationID = deref(original)
	n.ReplyTo = deref(replyTo)
	return n, nil
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	n.ID = ensureID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications(id, user_id, message, type, read, created_at, sent_by, reported_by, original_notification_id, reply_to)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, n.ID, nullable(n.UserID), n.Message, nullable(string(n.Type)), n.Read, n.CreatedAt,
		nullable(n.SentBy), nullable(n.ReportedBy), nullable(n.OriginalNotificationID), nullable(n.ReplyTo))
	return n, mapErr(err)
}

func (r *NotificationRepository) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	return scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id))
}

func (r *NotificationRepository) list(ctx context.Context, filter string, args ...any) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE `+filter+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) ListAdminFeed(ctx context.Context) ([]domain.Notification, error) {
	return r.list(ctx, adminFeedFilter)
}

func (r *NotificationRepository) ListUserFeed(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.list(ctx, userFeedFilter, userID)
}

func (r *NotificationRepository) count(ctx context.Context, filter string, args ...any) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*)::BIGINT FROM notifications WHERE read = FALSE AND `+filter, args...).Scan(&n)
	return n, err
}

func (r *NotificationRepository) CountUnreadAdmin(ctx context.Context) (int64, error) {
	return r.count(ctx, adminFeedFilter)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) DeleteNotification(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) DeleteAdminFeed(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE `+adminFeedFilter)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *NotificationRepository) DeleteUserFeed(ctx context.Context, userID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE `+userFeedFilter, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
