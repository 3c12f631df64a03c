package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"legalchat/server/legalchat/domain"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const (
	usersTable  = "users"
	adminsTable = "admins"
)

const accountColumns = `id, name, email, password_hash, role, created_at, last_login`

func (r *UserRepository) create(ctx context.Context, table string, account domain.Account) (domain.Account, error) {
	account.ID = ensureID(account.ID)
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	err := r.db.QueryRow(ctx, `
		INSERT INTO `+table+`(id, name, email, password_hash, role)
		VALUES($1, $2, $3, $4, $5)
		RETURNING created_at
	`, account.ID, account.Name, account.Email, account.PasswordHash, account.Role).Scan(&account.CreatedAt)
	return account, mapErr(err)
}

func (r *UserRepository) getBy(ctx context.Context, table, column, value string) (domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM `+table+` WHERE `+column+`=$1`, value).
		Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.LastLogin)
	return a, mapErr(err)
}

func (r *UserRepository) touchLogin(ctx context.Context, table, id string, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE `+table+` SET last_login=$2 WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) CreateUser(ctx context.Context, account domain.Account) (domain.Account, error) {
	return r.create(ctx, usersTable, account)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getBy(ctx, usersTable, "id", id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getBy(ctx, usersTable, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) TouchUserLogin(ctx context.Context, id string, at time.Time) error {
	return r.touchLogin(ctx, usersTable, id, at)
}

func (r *UserRepository) ListUsers(ctx context.Context, limit int) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Account, 0)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.LastLogin); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *UserRepository) UpdateUserName(ctx context.Context, id, name string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET name=$2 WHERE id=$1`, id, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	// Chats denormalise the owner name.
	_, err = r.db.Exec(ctx, `UPDATE chats SET owner_user_name=$2 WHERE owner_user_id=$1`, id, name)
	return err
}

func (r *UserRepository) UpdateUserPassword(ctx context.Context, id, hash string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetUserRole performs a compare-and-set on the role column.
func (r *UserRepository) SetUserRole(ctx context.Context, id string, from, to domain.Role) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET role=$3 WHERE id=$1 AND role=$2`, id, from, to)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetUserByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) CreateAdmin(ctx context.Context, account domain.Account) (domain.Account, error) {
	account.Role = domain.RoleAdmin
	return r.create(ctx, adminsTable, account)
}

func (r *UserRepository) GetAdminByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getBy(ctx, adminsTable, "id", id)
}

func (r *UserRepository) GetAdminByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getBy(ctx, adminsTable, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) TouchAdminLogin(ctx context.Context, id string, at time.Time) error {
	return r.touchLogin(ctx, adminsTable, id, at)
}
