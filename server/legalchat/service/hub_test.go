package service_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"legalchat/server/legalchat/domain"
	"legalchat/server/legalchat/service"
)

type fakeSocket struct {
	mu      sync.Mutex
	written []any
	closed  bool
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, v)
	return nil
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("closed")
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func TestHubRoutesByFeed(t *testing.T) {
	newHarness(t)
	hub := service.NewHub()
	userSock, otherSock, adminSock := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	hub.Register(&service.WSClient{ConnID: "c1", UserID: "u1", Conn: userSock})
	hub.Register(&service.WSClient{ConnID: "c2", UserID: "u2", Conn: otherSock})
	hub.Register(&service.WSClient{ConnID: "c3", UserID: "a1", Admin: true, Conn: adminSock})

	hub.Deliver(domain.Notification{ID: "n1", UserID: "u1", Type: domain.NotificationUnblock})
	if userSock.count() != 1 || adminSock.count() != 0 || otherSock.count() != 0 {
		t.Errorf("unblock: user=%d admin=%d other=%d", userSock.count(), adminSock.count(), otherSock.count())
	}

	hub.Deliver(domain.Notification{ID: "n2", UserID: "u1", Type: domain.NotificationReply})
	if userSock.count() != 2 || adminSock.count() != 1 {
		t.Errorf("reply: user=%d admin=%d", userSock.count(), adminSock.count())
	}

	hub.Deliver(domain.Notification{ID: "n3", Type: domain.NotificationLegacy})
	if adminSock.count() != 2 || userSock.count() != 2 {
		t.Errorf("legacy: user=%d admin=%d", userSock.count(), adminSock.count())
	}

	hub.Deliver(domain.Notification{ID: "n4", UserID: "u1", Type: domain.NotificationUnblockRequest})
	if adminSock.count() != 3 || userSock.count() != 2 {
		t.Errorf("own request: user=%d admin=%d", userSock.count(), adminSock.count())
	}
}

func TestHubServeUnregistersOnClose(t *testing.T) {
	newHarness(t)
	hub := service.NewHub()
	sock := &fakeSocket{}
	hub.Serve(&service.WSClient{ConnID: "c1", UserID: "u1", Conn: sock})

	if hub.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d, want 0", hub.ConnectionCount())
	}
	if !sock.closed {
		t.Errorf("socket not closed")
	}
}
