package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"legalchat/server/legalchat/domain"
)

// Store is an in-memory implementation of every legalchat repository. It
// enforces the same uniqueness rules as the Postgres schema. Safe for
// concurrent use.
type Store struct {
	mu            sync.Mutex
	seq           int
	users         map[string]domain.Account
	admins        map[string]domain.Account
	chats         map[string]domain.ChatSession
	files         map[string]domain.File
	notifications map[string]storedNotification
	logs          []domain.AdminLog

	// CreateFileErr, when set, is consulted before every file insert.
	CreateFileErr func(f domain.File) error
	// CreateNotificationErr, when set, fails every notification insert.
	CreateNotificationErr error
	// BeforeCreateChat runs before a chat insert, outside the store lock.
	BeforeCreateChat func(chat domain.ChatSession)
}

type storedNotification struct {
	seq int
	n   domain.Notification
}

func NewStore() *Store {
	return &Store{
		users:         map[string]domain.Account{},
		admins:        map[string]domain.Account{},
		chats:         map[string]domain.ChatSession{},
		files:         map[string]domain.File{},
		notifications: map[string]storedNotification{},
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func cloneChat(c domain.ChatSession) domain.ChatSession {
	c.Messages = c.CloneMessages()
	return c
}

// Accounts

func (s *Store) createAccount(table map[string]domain.Account, prefix string, a domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	for _, existing := range table {
		if existing.Email == a.Email {
			return domain.Account{}, domain.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = s.nextID(prefix)
	}
	if _, ok := table[a.ID]; ok {
		return domain.Account{}, domain.ErrConflict
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	table[a.ID] = a
	return a, nil
}

func (s *Store) accountBy(table map[string]domain.Account, match func(domain.Account) bool) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range table {
		if match(a) {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (s *Store) touch(table map[string]domain.Account, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := table[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.LastLogin = &at
	table[id] = a
	return nil
}

func (s *Store) CreateUser(_ context.Context, a domain.Account) (domain.Account, error) {
	return s.createAccount(s.users, "user", a)
}

func (s *Store) GetUserByID(_ context.Context, id string) (domain.Account, error) {
	return s.accountBy(s.users, func(a domain.Account) bool { return a.ID == id })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.accountBy(s.users, func(a domain.Account) bool { return a.Email == email })
}

func (s *Store) TouchUserLogin(_ context.Context, id string, at time.Time) error {
	return s.touch(s.users, id, at)
}

func (s *Store) ListUsers(_ context.Context, limit int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.Account, 0, len(s.users))
	for _, a := range s.users {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) UpdateUserName(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Name = name
	s.users[id] = a
	for chatID, c := range s.chats {
		if c.OwnerUserID == id {
			c.OwnerUserName = name
			s.chats[chatID] = c
		}
	}
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.PasswordHash = hash
	s.users[id] = a
	return nil
}

func (s *Store) SetUserRole(_ context.Context, id string, from, to domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Role != from {
		return domain.ErrConflict
	}
	a.Role = to
	s.users[id] = a
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CreateAdmin(_ context.Context, a domain.Account) (domain.Account, error) {
	return s.createAccount(s.admins, "admin", a)
}

func (s *Store) GetAdminByID(_ context.Context, id string) (domain.Account, error) {
	return s.accountBy(s.admins, func(a domain.Account) bool { return a.ID == id })
}

func (s *Store) GetAdminByEmail(_ context.Context, email string) (domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.accountBy(s.admins, func(a domain.Account) bool { return a.Email == email })
}

func (s *Store) TouchAdminLogin(_ context.Context, id string, at time.Time) error {
	return s.touch(s.admins, id, at)
}

// Chats

func (s *Store) GetChat(_ context.Context, id string) (domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return domain.ChatSession{}, domain.ErrNotFound
	}
	return cloneChat(c), nil
}

func (s *Store) FindCopy(_ context.Context, ownerID, originalSharedID string) (domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.OwnerUserID == ownerID && c.OriginalSharedID == originalSharedID && originalSharedID != "" {
			return cloneChat(c), nil
		}
	}
	return domain.ChatSession{}, domain.ErrNotFound
}

func (s *Store) CreateChat(_ context.Context, c domain.ChatSession) (domain.ChatSession, error) {
	if s.BeforeCreateChat != nil {
		s.BeforeCreateChat(c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("chat")
	}
	if _, ok := s.chats[c.ID]; ok {
		return domain.ChatSession{}, fmt.Errorf("duplicate chat id %s", c.ID)
	}
	if c.OriginalSharedID != "" {
		for _, existing := range s.chats {
			if existing.OwnerUserID == c.OwnerUserID && existing.OriginalSharedID == c.OriginalSharedID {
				return c, domain.ErrConflict
			}
		}
	}
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	s.chats[c.ID] = cloneChat(c)
	return cloneChat(c), nil
}

func (s *Store) SaveChat(_ context.Context, c domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.chats[c.ID]
	if !ok || existing.OwnerUserID != c.OwnerUserID {
		return domain.ErrNotFound
	}
	existing.Title = c.Title
	existing.Messages = c.CloneMessages()
	existing.UpdatedAt = c.UpdatedAt
	s.chats[c.ID] = existing
	return nil
}

func (s *Store) ListChats(_ context.Context, ownerID string) ([]domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.ChatSession, 0)
	for _, c := range s.chats {
		if c.OwnerUserID == ownerID {
			items = append(items, cloneChat(c))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

func (s *Store) DeleteChat(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.OwnerUserID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.chats, id)
	return nil
}

func (s *Store) DeleteChatsByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.chats {
		if c.OwnerUserID == ownerID {
			delete(s.chats, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

// Files

func (s *Store) CreateFile(_ context.Context, f domain.File) (domain.File, error) {
	if s.CreateFileErr != nil {
		if err := s.CreateFileErr(f); err != nil {
			return domain.File{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = s.nextID("file")
	}
	if _, ok := s.files[f.ID]; ok {
		return domain.File{}, domain.ErrConflict
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.Data = ""
	f.HasPreview = f.PreviewKey != ""
	s.files[f.ID] = f
	return f, nil
}

func (s *Store) GetFile(_ context.Context, id string) (domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return domain.File{}, domain.ErrNotFound
	}
	return f, nil
}

func (s *Store) ListFiles(_ context.Context, ownerID string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.File, 0)
	for _, f := range s.files {
		if f.OwnerUserID == ownerID {
			items = append(items, f)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) DeleteFile(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok || f.OwnerUserID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *Store) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Notifications

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	if s.CreateNotificationErr != nil {
		return domain.Notification{}, s.CreateNotificationErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = s.nextID("notification")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.notifications[n.ID] = storedNotification{seq: s.seq, n: n}
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.notifications[id]
	if !ok {
		return domain.Notification{}, domain.ErrNotFound
	}
	return stored.n, nil
}

func (s *Store) filterNotifications(match func(domain.Notification) bool) []domain.Notification {
	stored := make([]storedNotification, 0)
	for _, item := range s.notifications {
		if match(item.n) {
			stored = append(stored, item)
		}
	}
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].n.CreatedAt.Equal(stored[j].n.CreatedAt) {
			return stored[i].seq > stored[j].seq
		}
		return stored[i].n.CreatedAt.After(stored[j].n.CreatedAt)
	})
	items := make([]domain.Notification, len(stored))
	for i, item := range stored {
		items[i] = item.n
	}
	return items
}

func (s *Store) ListAdminFeed(_ context.Context) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterNotifications(domain.Notification.InAdminFeed), nil
}

func (s *Store) ListUserFeed(_ context.Context, userID string) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterNotifications(func(n domain.Notification) bool { return n.InUserFeed(userID) }), nil
}

func (s *Store) countUnread(match func(domain.Notification) bool) int64 {
	var count int64
	for _, item := range s.notifications {
		if !item.n.Read && match(item.n) {
			count++
		}
	}
	return count
}

func (s *Store) CountUnreadAdmin(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countUnread(domain.Notification.InAdminFeed), nil
}

func (s *Store) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.n.Read = true
	s.notifications[id] = item
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) deleteNotifications(match func(domain.Notification) bool) int64 {
	var n int64
	for id, item := range s.notifications {
		if match(item.n) {
			delete(s.notifications, id)
			n++
		}
	}
	return n
}

func (s *Store) DeleteAdminFeed(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNotifications(domain.Notification.InAdminFeed), nil
}

func (s *Store) DeleteUserFeed(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNotifications(func(n domain.Notification) bool { return n.InUserFeed(userID) }), nil
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterNotifications(func(domain.Notification) bool { return true })
}

// Admin logs

func (s *Store) CreateAdminLog(_ context.Context, entry domain.AdminLog) (domain.AdminLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = s.nextID("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, entry)
	return entry, nil
}

func (s *Store) ListAdminLogs(_ context.Context, limit int) ([]domain.AdminLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.AdminLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		items = append(items, s.logs[i])
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}
