package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"legalchat/server/legalchat/domain"
)

var ErrBlobNotFound = errors.New("blob not found")

type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// CopyErr, when set, is consulted before every copy.
	CopyErr func(srcKey, dstKey string) error
}

func NewBlobStore() *BlobStore {
	return &BlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *BlobStore) Put(_ context.Context, key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	b.types[key] = contentType
	return nil
}

func (b *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *BlobStore) Copy(_ context.Context, srcKey, dstKey string) error {
	if b.CopyErr != nil {
		if err := b.CopyErr(srcKey, dstKey); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[srcKey]
	if !ok {
		return ErrBlobNotFound
	}
	b.objects[dstKey] = append([]byte(nil), data...)
	b.types[dstKey] = b.types[srcKey]
	return nil
}

func (b *BlobStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	delete(b.types, key)
	return nil
}

func (b *BlobStore) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type OTPStore struct {
	mu    sync.Mutex
	codes map[string]otpEntry
	Now   func() time.Time
}

type otpEntry struct {
	code      string
	expiresAt time.Time
	tries     int
}

func NewOTPStore() *OTPStore {
	return &OTPStore{codes: map[string]otpEntry{}, Now: time.Now}
}

func (s *OTPStore) Save(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = otpEntry{code: code, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *OTPStore) Consume(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[email]
	if !ok {
		return false, nil
	}
	if entry.code != code {
		entry.tries++
		if entry.tries >= domain.MaxResetAttempts {
			delete(s.codes, email)
		} else {
			s.codes[email] = entry
		}
		return false, nil
	}
	delete(s.codes, email)
	if s.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *OTPStore) Code(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[email]
	return entry.code, ok
}

type Assistant struct {
	mu      sync.Mutex
	Answer  string
	Err     error
	calls   int
	history []domain.Message
}

func (a *Assistant) Reply(_ context.Context, history []domain.Message, _ *domain.File) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.history = append([]domain.Message(nil), history...)
	if a.Err != nil {
		return "", a.Err
	}
	if a.Answer == "" {
		return "stub answer", nil
	}
	return a.Answer, nil
}

func (a *Assistant) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Assistant) LastHistory() []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Message(nil), a.history...)
}

type PublishedEvent struct {
	Key     string
	Payload any
}

type Publisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, PublishedEvent{Key: key, Payload: payload})
	return nil
}

func (p *Publisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.events))
	for i, e := range p.events {
		keys[i] = e.Key
	}
	return keys
}

type Notifier struct {
	mu        sync.Mutex
	delivered []domain.Notification
}

func (n *Notifier) Deliver(item domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, item)
}

func (n *Notifier) Delivered() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.delivered...)
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
