package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
)

type AdminLogRepository struct {
	db *pgxpool.Pool
}

func NewAdminLogRepository(db *pgxpool.Pool) *AdminLogRepository {
	return &AdminLogRepository{db: db}
}

func (r *AdminLogRepository) CreateAdminLog(ctx context.Context, entry domain.AdminLog) (domain.AdminLog, error) {
	entry.ID = ensureID(entry.ID)
	err := r.db.QueryRow(ctx, `
		INSERT INTO admin_logs(id, admin_id, action, target_user_id, detail)
		VALUES($1, $2, $3, $4, $5)
		RETURNING created_at
	`, entry.ID, entry.AdminID, entry.Action, nullable(entry.TargetUserID), entry.Detail).Scan(&entry.CreatedAt)
	return entry, mapErr(err)
}

func (r *AdminLogRepository) ListAdminLogs(ctx context.Context, limit int) ([]domain.AdminLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, admin_id, action, target_user_id, detail, created_at
		FROM admin_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.AdminLog, 0)
	for rows.Next() {
		var (
			entry  domain.AdminLog
			target *string
		)
		if err := rows.Scan(&entry.ID, &entry.AdminID, &entry.Action, &target, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.TargetUserID = deref(target)
		items = append(items, entry)
	}
	return items, rows.Err()
}
