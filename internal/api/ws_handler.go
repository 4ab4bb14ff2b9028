package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/worker"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

var errWsAuthRequired = errors.New("auth required")

// Subscriber 是 redis.Client 的订阅子集。
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// WsHandler 把 worker 发布的导出通知转发给已鉴权的客户端。
type WsHandler struct {
	subscriber Subscriber
	verifier   middleware.TokenVerifier
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

func NewWsHandler(subscriber Subscriber, verifier middleware.TokenVerifier, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WsHandler{
		subscriber: subscriber,
		verifier:   verifier,
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

// originChecker 未配置白名单时只接受同源连接。
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// wsClientMessage 是客户端上行帧。首帧必须是 auth，之后可用 watch 切换关注的简历。
type wsClientMessage struct {
	Type  string `json:"type"` // auth | watch
	Token string `json:"token,omitempty"`
	CVID  uint   `json:"cv_id,omitempty"`
}

type wsAck struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
	CVID   uint   `json:"cv_id,omitempty"`
}

// HandleConnection 完成鉴权握手后订阅用户频道。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	s := &wsSession{conn: conn, log: h.logger.With(slog.String("client_ip", c.ClientIP()))}

	session, err := s.authenticate(h.verifier)
	if err != nil {
		s.log.Warn("websocket authentication failed", slog.Any("error", err))
		s.close(websocket.ClosePolicyViolation, "unauthorized")
		return
	}
	s.log = s.log.With(slog.Uint64("user_id", uint64(session.UserID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- s.readLoop(ctx) }()
	go func() { errCh <- s.forward(ctx, h.subscriber, session.UserID) }()

	err = <-errCh
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	s.log.Info("websocket connection closed")
}

// wsSession 持有单个连接的状态。gorilla 连接只允许一个并发写者，
// 握手完成后所有写操作都在 forward 协程中进行。
type wsSession struct {
	conn  *websocket.Conn
	log   *slog.Logger
	watch atomic.Uint64 // 0 表示转发该用户的全部通知
}

func (s *wsSession) authenticate(verifier middleware.TokenVerifier) (auth.Session, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	var msg wsClientMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return auth.Session{}, err
	}
	if msg.Type != "auth" || msg.Token == "" {
		return auth.Session{}, errWsAuthRequired
	}
	session, err := verifier.Verify(msg.Token)
	if err == nil && !session.Valid() {
		err = auth.ErrInvalidToken
	}
	if err != nil {
		return auth.Session{}, err
	}
	_ = s.conn.SetReadDeadline(time.Time{})

	s.watch.Store(uint64(msg.CVID))
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(wsAck{Type: "ready", UserID: session.UserID, CVID: msg.CVID}); err != nil {
		return auth.Session{}, err
	}
	return session, nil
}

// readLoop 处理 watch 帧，同时用于感知客户端断开。
func (s *wsSession) readLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		var msg wsClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type == "watch" {
			s.watch.Store(uint64(msg.CVID))
			s.log.Debug("websocket watch changed", slog.Uint64("cv_id", uint64(msg.CVID)))
		}
	}
	return ctx.Err()
}

func (s *wsSession) forward(ctx context.Context, subscriber Subscriber, userID uint) error {
	channel := worker.NotifyChannel(userID)
	pubsub := subscriber.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			if !s.wants(msg.Payload) {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// wants 按当前关注的简历过滤通知；无法解析的载荷原样转发。
func (s *wsSession) wants(payload string) bool {
	watch := uint(s.watch.Load())
	if watch == 0 {
		return true
	}
	var notify worker.ExportNotifyMessage
	if err := json.Unmarshal([]byte(payload), &notify); err != nil {
		return true
	}
	return notify.CVID == watch
}

func (s *wsSession) close(code int, text string) {
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}
