package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/resume"
)

// DatabaseSource 从 entitlements 表读取已付费模板。
type DatabaseSource struct {
	db *gorm.DB
}

func NewDatabaseSource(db *gorm.DB) *DatabaseSource {
	return &DatabaseSource{db: db}
}

func (s *DatabaseSource) PaidTemplates(ctx context.Context, userID uint) (Set, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&database.Entitlement{}).
		Where("user_id = ? AND status = ?", userID, database.EntitlementPaid).
		Pluck("template_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("query entitlements: %w", err)
	}
	set := make(Set, len(ids))
	for _, id := range ids {
		set[resume.TemplateID(id)] = struct{}{}
	}
	return set, nil
}

// Grant 记录一条已付费授权，重复授权是幂等的。
func (s *DatabaseSource) Grant(ctx context.Context, userID uint, templateID resume.TemplateID) error {
	row := database.Entitlement{UserID: userID, TemplateID: string(templateID)}
	err := s.db.WithContext(ctx).
		Where(database.Entitlement{UserID: userID, TemplateID: string(templateID)}).
		Assign(database.Entitlement{Status: database.EntitlementPaid}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

// EntitlementsPath 是支付协作方暴露的内部接口前缀。
const EntitlementsPath = "/v1/internal/entitlements"

// Response 是内部接口的响应体。
type Response struct {
	TemplateIDs []json.RawMessage `json:"template_ids"`
}

// HTTPSource 通过内部 HTTP 接口向支付协作方拉取授权，需携带共享密钥。
type HTTPSource struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewHTTPSource(baseURL, secret string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secret:  strings.TrimSpace(secret),
		client:  client,
	}
}

func (s *HTTPSource) PaidTemplates(ctx context.Context, userID uint) (Set, error) {
	if s.secret == "" {
		return nil, fmt.Errorf("internal api secret missing")
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("payment base url missing")
	}

	targetURL := fmt.Sprintf("%s%s/%d", s.baseURL, EntitlementsPath, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build entitlement request: %w", err)
	}
	req.Header.Set("X-Internal-Secret", s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request entitlements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("entitlements status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode entitlements: %w", err)
	}
	return decodeIDs(payload.TemplateIDs), nil
}

// decodeIDs 同时接受字符串与数字形式的模板标识。
func decodeIDs(raw []json.RawMessage) Set {
	set := make(Set, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				set[resume.TemplateID(s)] = struct{}{}
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err == nil {
			if _, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
				set[resume.TemplateID(n.String())] = struct{}{}
			}
		}
	}
	return set
}

// EncodeSet 生成 Response，供内部接口输出。
func EncodeSet(s Set) Response {
	out := Response{TemplateIDs: make([]json.RawMessage, 0, len(s))}
	for _, id := range s.IDs() {
		raw, _ := json.Marshal(string(id))
		out.TemplateIDs = append(out.TemplateIDs, raw)
	}
	return out
}
