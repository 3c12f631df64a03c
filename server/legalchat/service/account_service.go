package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	commonauth "legalchat/server/common/auth"
	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const (
	PasswordResetTTL = 10 * time.Minute
	resetCodeDigits  = 6
	defaultUserLimit = 100
	maxUserLimit     = 500
	defaultLogsLimit = 50
	maxLogsLimit     = 500
)

type tokenIssuer interface {
	GenerateToken(userID, role, name string) (string, error)
}

type LoginResult struct {
	Token   string         `json:"accessToken"`
	Account domain.Account `json:"account"`
}

type AccountService struct {
	accounts  AccountStore
	chats     ChatStore
	files     FileStore
	blobs     BlobStore
	notes     NotificationStore
	logs      AdminLogStore
	otps      OTPStore
	tokens    tokenIssuer
	publisher Publisher
	now       clock
}

type AccountDeps struct {
	Accounts      AccountStore
	Chats         ChatStore
	Files         FileStore
	Blobs         BlobStore
	Notifications NotificationStore
	AdminLogs     AdminLogStore
	OTPs          OTPStore
	Tokens        tokenIssuer
	Publisher     Publisher
}

func NewAccountService(deps AccountDeps) *AccountService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &AccountService{
		accounts:  deps.Accounts,
		chats:     deps.Chats,
		files:     deps.Files,
		blobs:     deps.Blobs,
		notes:     deps.Notifications,
		logs:      deps.AdminLogs,
		otps:      deps.OTPs,
		tokens:    deps.Tokens,
		publisher: publisher,
		now:       utcNow,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("email %q is invalid: %w", email, domain.ErrBadRequest)
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	hash, err := commonauth.HashPassword(password)
	if errors.Is(err, commonauth.ErrPasswordTooShort) {
		return "", fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	return hash, err
}

func (s *AccountService) Register(ctx context.Context, name, email, password string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("name is required: %w", domain.ErrBadRequest)
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := s.accounts.CreateUser(ctx, domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("register %s: %w", email, err)
	}
	commonlog.Infof("event=account_register action=create status=ok user_id=%s", account.ID)
	return account, nil
}

func (s *AccountService) CreateAdmin(ctx context.Context, name, email, password string) (domain.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.Account{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Administrator"
	}
	return s.accounts.CreateAdmin(ctx, domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
}

func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	return s.login(ctx, email, password, s.accounts.GetUserByEmail, s.accounts.TouchUserLogin)
}

func (s *AccountService) AdminLogin(ctx context.Context, email, password string) (LoginResult, error) {
	return s.login(ctx, email, password, s.accounts.GetAdminByEmail, s.accounts.TouchAdminLogin)
}

func (s *AccountService) login(
	ctx context.Context,
	email, password string,
	lookup func(context.Context, string) (domain.Account, error),
	touch func(context.Context, string, time.Time) error,
) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := lookup(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrUnauthorized
		}
		return LoginResult{}, err
	}
	if !commonauth.CheckPassword(account.PasswordHash, password) {
		commonlog.Warnf("event=account_login action=check_password status=failed user_id=%s", account.ID)
		return LoginResult{}, domain.ErrUnauthorized
	}
	now := s.now()
	if err := touch(ctx, account.ID, now); err != nil {
		commonlog.Warnf("event=account_login action=touch status=failed user_id=%s error=%v", account.ID, err)
	} else {
		account.LastLogin = &now
	}
	token, err := s.tokens.GenerateToken(account.ID, string(account.Role), account.Name)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, Account: account}, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (domain.Account, error) {
	return s.accounts.GetUserByID(ctx, userID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID, name string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("name is required: %w", domain.ErrBadRequest)
	}
	if err := s.accounts.UpdateUserName(ctx, userID, name); err != nil {
		return domain.Account{}, fmt.Errorf("update profile %s: %w", userID, err)
	}
	return s.accounts.GetUserByID(ctx, userID)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	account, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !commonauth.CheckPassword(account.PasswordHash, current) {
		return fmt.Errorf("current password does not match: %w", domain.ErrBadRequest)
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.accounts.UpdateUserPassword(ctx, userID, hash)
}

// RequestPasswordReset stores a one-time code for a known email. Unknown
// emails succeed silently.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	account, err := s.accounts.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		commonlog.Infof("event=password_reset action=request status=skipped reason=unknown_email")
		return nil
	}
	if err != nil {
		return err
	}
	code, err := resetCode()
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, email, code, PasswordResetTTL); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	publishBestEffort(ctx, s.publisher, EventPasswordResetRequested, map[string]any{
		"user_id":    account.ID,
		"email":      email,
		"code":       code,
		"expires_at": s.now().Add(PasswordResetTTL),
	})
	commonlog.Infof("event=password_reset action=request status=ok user_id=%s", account.ID)
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, email, code, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("code is required: %w", domain.ErrBadRequest)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	ok, err := s.otps.Consume(ctx, email, code)
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}
	if !ok {
		return fmt.Errorf("invalid or expired reset code: %w", domain.ErrBadRequest)
	}
	account, err := s.accounts.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdateUserPassword(ctx, account.ID, hash); err != nil {
		return err
	}
	commonlog.Infof("event=password_reset action=reset status=ok user_id=%s", account.ID)
	return nil
}

func (s *AccountService) Deactivate(ctx context.Context, userID string) error {
	if _, err := s.accounts.GetUserByID(ctx, userID); err != nil {
		return err
	}
	files, err := s.files.ListFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("list files of %s: %w", userID, err)
	}
	for _, f := range files {
		if err := removeFile(ctx, s.files, s.blobs, f); err != nil {
			return fmt.Errorf("remove file %s: %w", f.ID, err)
		}
	}
	chats, err := s.chats.DeleteChatsByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete chats of %s: %w", userID, err)
	}
	notes, err := s.notes.DeleteUserFeed(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete notifications of %s: %w", userID, err)
	}
	if err := s.accounts.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	commonlog.Infof("event=account_deactivate action=delete status=ok user_id=%s files=%d chats=%d notifications=%d", userID, len(files), chats, notes)
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context, limit int) ([]domain.Account, error) {
	if limit <= 0 || limit > maxUserLimit {
		limit = defaultUserLimit
	}
	return s.accounts.ListUsers(ctx, limit)
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (domain.Account, error) {
	return s.accounts.GetUserByID(ctx, strings.TrimSpace(userID))
}

func (s *AccountService) DeactivateUser(ctx context.Context, adminID, userID string) error {
	userID = strings.TrimSpace(userID)
	if err := s.Deactivate(ctx, userID); err != nil {
		return err
	}
	recordAdminAction(ctx, s.logs, s.now, adminID, "deactivate_user", userID, "")
	return nil
}

func (s *AccountService) ListAdminLogs(ctx context.Context, limit int) ([]domain.AdminLog, error) {
	if limit <= 0 || limit > maxLogsLimit {
		limit = defaultLogsLimit
	}
	return s.logs.ListAdminLogs(ctx, limit)
}

func resetCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < resetCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}
