package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cvStudio/internal/auth"
)

func TestWsSessionWantsFiltersByWatchedCV(t *testing.T) {
	s := &wsSession{}
	completed := `{"status":"completed","cv_id":7}`

	if !s.wants(completed) {
		t.Fatalf("unfiltered session should forward everything")
	}
	s.watch.Store(8)
	if s.wants(completed) {
		t.Fatalf("notification for another cv forwarded")
	}
	s.watch.Store(7)
	if !s.wants(completed) {
		t.Fatalf("notification for watched cv dropped")
	}
	if !s.wants("not json") {
		t.Fatalf("opaque payloads should pass through")
	}
}

func TestOriginChecker(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same host", nil, "http://cv.example", true},
		{"cross host without allowlist", nil, "http://evil.example", false},
		{"allowlisted", []string{"http://app.example"}, "http://app.example", true},
		{"not allowlisted", []string{"http://app.example"}, "http://cv.example", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://cv.example/v1/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := originChecker(tc.allowed)(req); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWsRejectsInvalidHandshake(t *testing.T) {
	gin.SetMode(gin.TestMode)

	verifier := verifierFunc(func(token string) (auth.Session, error) {
		if token == "good" {
			return auth.Session{UserID: 1}, nil
		}
		return auth.Session{}, auth.ErrInvalidToken
	})

	cases := map[string]any{
		"wrong type":  map[string]string{"type": "watch", "token": "good"},
		"bad token":   map[string]string{"type": "auth", "token": "bad"},
		"empty token": map[string]string{"type": "auth"},
	}
	for name, first := range cases {
		t.Run(name, func(t *testing.T) {
			// subscriber 为 nil：鉴权失败时不应发生订阅
			h := NewWsHandler(nil, verifier, nil, nil)
			router := gin.New()
			router.GET("/v1/ws", h.HandleConnection)
			srv := httptest.NewServer(router)
			defer srv.Close()

			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()

			if err := conn.WriteJSON(first); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, _, err = conn.ReadMessage()
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
				t.Fatalf("expected policy violation close, got %v", err)
			}
		})
	}
}
