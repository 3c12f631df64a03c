package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
)

type FileRepository struct {
	db *pgxpool.Pool
}

func NewFileRepository(db *pgxpool.Pool) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, owner_user_id, original_name, mime_type, size, extracted_text, object_key, preview_key, created_at, original_file_id`

func scanFile(row pgx.Row) (domain.File, error) {
	var (
		f        domain.File
		original *string
	)
	err := row.Scan(&f.ID, &f.OwnerUserID, &f.OriginalName, &f.MimeType, &f.Size, &f.ExtractedText, &f.ObjectKey, &f.PreviewKey, &f.CreatedAt, &original)
	if err != nil {
		return domain.File{}, mapErr(err)
	}
	f.OriginalFileID = deref(original)
	f.HasPreview = f.PreviewKey != ""
	return f, nil
}

func (r *FileRepository) CreateFile(ctx context.Context, f domain.File) (domain.File, error) {
	f.ID = ensureID(f.ID)
	err := r.db.QueryRow(ctx, `
		INSERT INTO files(id, owner_user_id, original_name, mime_type, size, extracted_text, object_key, preview_key, original_file_id)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, f.ID, f.OwnerUserID, f.OriginalName, f.MimeType, f.Size, f.ExtractedText, f.ObjectKey, f.PreviewKey, nullable(f.OriginalFileID)).Scan(&f.CreatedAt)
	f.HasPreview = f.PreviewKey != ""
	return f, mapErr(err)
}

func (r *FileRepository) GetFile(ctx context.Context, id string) (domain.File, error) {
	return scanFile(r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id=$1`, id))
}

func (r *FileRepository) ListFiles(ctx context.Context, ownerID string) ([]domain.File, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE owner_user_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *FileRepository) DeleteFile(ctx context.Context, ownerID, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM files WHERE id=$1 AND owner_user_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
