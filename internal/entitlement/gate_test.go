package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/auth"
	"cvStudio/internal/database"
	"cvStudio/internal/resume"
)

func TestIsExportAllowedMembership(t *testing.T) {
	paid := NewSet("7")
	cases := []struct {
		template resume.TemplateID
		want     bool
	}{
		{"7", true},
		{"8", false},
		{"", false},
		{" 7", false},
	}
	for _, c := range cases {
		if got := IsExportAllowed(1, c.template, paid); got != c.want {
			t.Fatalf("IsExportAllowed(%q) = %v, want %v", c.template, got, c.want)
		}
	}
	for _, id := range []resume.TemplateID{"1", "7", "classic"} {
		if IsExportAllowed(1, id, Set{}) || IsExportAllowed(1, id, nil) {
			t.Fatalf("empty set allowed %q", id)
		}
	}
	// 判定只看集合成员关系，与用户标识无关
	for _, uid := range []uint{0, 1, 42} {
		if !IsExportAllowed(uid, "7", paid) || IsExportAllowed(uid, "8", paid) {
			t.Fatalf("user %d: result depends on more than membership", uid)
		}
	}
	if IsExportAllowed(1, "", Set{"": {}}) {
		t.Fatalf("empty template allowed")
	}
}

func TestGateFetchesFreshSnapshotEveryAttempt(t *testing.T) {
	calls := 0
	paid := NewSet("7")
	gate := NewGate(SourceFunc(func(ctx context.Context, userID uint) (Set, error) {
		calls++
		return paid, nil
	}), nil)
	session := auth.Session{UserID: 3}

	if err := gate.Authorize(context.Background(), session, "7"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := gate.Authorize(context.Background(), session, "8"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}

	// 撤销授权后下一次尝试必须看到新快照
	paid = Set{}
	if err := gate.Authorize(context.Background(), session, "7"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("stale snapshot used: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 fetches, got %d", calls)
	}
}

func TestGateFailsClosed(t *testing.T) {
	gate := NewGate(SourceFunc(func(ctx context.Context, userID uint) (Set, error) {
		return NewSet("7"), errors.New("network down")
	}), nil)
	if err := gate.Authorize(context.Background(), auth.Session{UserID: 1}, "7"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected fail closed, got %v", err)
	}
	if err := NewGate(nil, nil).Authorize(context.Background(), auth.Session{UserID: 1}, "7"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("missing source must fail closed, got %v", err)
	}
	if err := gate.Authorize(context.Background(), auth.Session{}, "7"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("anonymous session must be rejected")
	}
}

func TestDatabaseSource(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:entitlements?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	src := NewDatabaseSource(db)
	ctx := context.Background()

	if err := src.Grant(ctx, 1, "7"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := src.Grant(ctx, 1, "7"); err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if err := db.Create(&database.Entitlement{UserID: 1, TemplateID: "9", Status: "refunded"}).Error; err != nil {
		t.Fatalf("create refunded: %v", err)
	}
	if err := src.Grant(ctx, 2, "8"); err != nil {
		t.Fatalf("grant other user: %v", err)
	}

	set, err := src.PaidTemplates(ctx, 1)
	if err != nil {
		t.Fatalf("paid templates: %v", err)
	}
	if len(set) != 1 || !set.Contains("7") {
		t.Fatalf("unexpected set: %v", set.IDs())
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Internal-Secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, EntitlementsPath+"/5") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"template_ids": ["7", 8, "", true]}`)
	}))
	defer srv.Close()

	set, err := NewHTTPSource(srv.URL+"/", "s3cret", srv.Client()).PaidTemplates(context.Background(), 5)
	if err != nil {
		t.Fatalf("paid templates: %v", err)
	}
	if len(set) != 2 || !set.Contains("7") || !set.Contains("8") {
		t.Fatalf("unexpected set: %v", set.IDs())
	}

	if _, err := NewHTTPSource(srv.URL, "wrong", srv.Client()).PaidTemplates(context.Background(), 5); err == nil {
		t.Fatalf("expected status error")
	}

	gate := NewGate(NewHTTPSource("http://127.0.0.1:1", "s3cret", nil), nil)
	if err := gate.Authorize(context.Background(), auth.Session{UserID: 5}, "7"); !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("unreachable collaborator must fail closed, got %v", err)
	}
}

func TestEncodeSetRoundTrip(t *testing.T) {
	data, err := json.Marshal(EncodeSet(NewSet("1", "2")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := decodeIDs(resp.TemplateIDs); len(got) != 2 || !got.Contains("1") {
		t.Fatalf("unexpected set: %v", got.IDs())
	}
}
