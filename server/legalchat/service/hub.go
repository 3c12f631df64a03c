package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	commonlog "legalchat/server/common/log"
	"legalchat/server/legalchat/domain"
)

const (
	NotificationsChannel = "legalchat:notifications"
	adminsAudience       = "admins"
	writeTimeout         = 5 * time.Second
)

type socket interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Close() error
}

type WSClient struct {
	ConnID string
	UserID string
	Admin  bool
	Conn   socket
	mu     sync.Mutex
}

func (c *WSClient) audience() string {
	if c.Admin {
		return adminsAudience
	}
	return userAudience(c.UserID)
}

func userAudience(userID string) string {
	return "user:" + userID
}

// Hub pushes new notifications to connected websocket clients. With Redis
// configured every replica receives each notification and fans out locally.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[string]*WSClient
	redis     *redis.Client
	redisSub  *redis.PubSub
	subCancel context.CancelFunc
}

type hubEvent struct {
	Audiences    []string            `json:"audiences"`
	Notification domain.Notification `json:"notification"`
}

type notificationPush struct {
	Type         string              `json:"type"`
	Notification domain.Notification `json:"notification"`
}

func NewHub() *Hub {
	return &Hub{clients: map[string]map[string]*WSClient{}}
}

func (h *Hub) UseRedis(client *redis.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redis = client
}

func (h *Hub) StartRedisSubscriber(ctx context.Context) error {
	h.mu.Lock()
	if h.redis == nil {
		h.mu.Unlock()
		return errors.New("redis client is nil")
	}
	if h.redisSub != nil {
		h.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := h.redis.Subscribe(subCtx, NotificationsChannel)
	h.redisSub = sub
	h.subCancel = cancel
	h.mu.Unlock()

	go h.consumeEvents(subCtx, sub)
	return nil
}

func (h *Hub) StopRedisSubscriber() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subCancel != nil {
		h.subCancel()
		h.subCancel = nil
	}
	if h.redisSub != nil {
		_ = h.redisSub.Close()
		h.redisSub = nil
	}
}

func (h *Hub) Register(client *WSClient) {
	key := client.audience()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[key]; !ok {
		h.clients[key] = map[string]*WSClient{}
	}
	h.clients[key][client.ConnID] = client
}

func (h *Hub) Unregister(client *WSClient) {
	key := client.audience()
	h.mu.Lock()
	if conns, ok := h.clients[key]; ok {
		delete(conns, client.ConnID)
		if len(conns) == 0 {
			delete(h.clients, key)
		}
	}
	h.mu.Unlock()
	_ = client.Conn.Close()
}

func (h *Hub) Serve(client *WSClient) {
	h.Register(client)
	defer h.Unregister(client)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				commonlog.Debugf("event=notification_hub action=read status=closed conn_id=%s error=%v", client.ConnID, err)
			}
			return
		}
	}
}

func (h *Hub) Deliver(n domain.Notification) {
	audiences := notificationAudiences(n)
	if len(audiences) == 0 {
		return
	}
	if h.publish(audiences, n) {
		return
	}
	count := h.deliverLocal(audiences, n)
	commonlog.Debugf("event=notification_hub action=fallback_dispatch notification_id=%s fanout_count=%d", n.ID, count)
}

func notificationAudiences(n domain.Notification) []string {
	audiences := make([]string, 0, 2)
	if n.UserID != "" && n.UserFacing() {
		audiences = append(audiences, userAudience(n.UserID))
	}
	if n.InAdminFeed() {
		audiences = append(audiences, adminsAudience)
	}
	return audiences
}

func (h *Hub) publish(audiences []string, n domain.Notification) bool {
	h.mu.RLock()
	redisClient := h.redis
	h.mu.RUnlock()
	if redisClient == nil {
		return false
	}
	b, err := json.Marshal(hubEvent{Audiences: audiences, Notification: n})
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := redisClient.Publish(ctx, NotificationsChannel, b).Err(); err != nil {
		commonlog.Warnf("event=notification_hub action=publish status=failed notification_id=%s error=%v", n.ID, err)
		return false
	}
	return true
}

func (h *Hub) deliverLocal(audiences []string, n domain.Notification) int {
	payload := notificationPush{Type: "notification.created", Notification: n}
	targets := make([]*WSClient, 0)
	h.mu.RLock()
	for _, audience := range audiences {
		for _, client := range h.clients[audience] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.WriteJSON(payload)
	}
	return len(targets)
}

func (h *Hub) consumeEvents(ctx context.Context, sub *redis.PubSub) {
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		var event hubEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			continue
		}
		count := h.deliverLocal(event.Audiences, event.Notification)
		commonlog.Debugf("event=notification_hub action=consume status=ok notification_id=%s fanout_count=%d", event.Notification.ID, count)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

func (c *WSClient) WriteJSON(payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.Conn.WriteJSON(payload); err != nil {
		commonlog.Debugf("event=notification_hub action=write status=failed conn_id=%s error=%v", c.ConnID, err)
	}
}
