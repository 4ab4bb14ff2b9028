// Package entitlement 判定用户能否以某个模板导出。
package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"cvStudio/internal/auth"
	"cvStudio/internal/resume"
)

// ErrPaymentRequired 表示当前用户未购买该模板，或授权来源不可用。
var ErrPaymentRequired = errors.New("payment required")

// Set 是已付费模板标识的快照。
type Set map[resume.TemplateID]struct{}

func NewSet(ids ...resume.TemplateID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id = resume.TemplateID(strings.TrimSpace(string(id))); id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s Set) Contains(id resume.TemplateID) bool {
	_, ok := s[id]
	return ok
}

// IDs 返回集合中的标识（无序）。
func (s Set) IDs() []resume.TemplateID {
	out := make([]resume.TemplateID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// IsExportAllowed 是纯谓词：当且仅当 templateID 在 paid 中时允许，空模板恒为 false。
// paid 已是 userID 的快照，身份校验由 Gate.Authorize 负责。
func IsExportAllowed(userID uint, templateID resume.TemplateID, paid Set) bool {
	if strings.TrimSpace(string(templateID)) == "" {
		return false
	}
	return paid.Contains(templateID)
}

// Source 提供某个用户已付费模板的快照。
type Source interface {
	PaidTemplates(ctx context.Context, userID uint) (Set, error)
}

// SourceFunc 将函数适配为 Source。
type SourceFunc func(ctx context.Context, userID uint) (Set, error)

func (f SourceFunc) PaidTemplates(ctx context.Context, userID uint) (Set, error) {
	return f(ctx, userID)
}

// Gate 在每次导出前重新拉取授权快照并判定，不做任何缓存。
type Gate struct {
	source Source
	logger *slog.Logger
}

func NewGate(source Source, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{source: source, logger: logger}
}

// Authorize 拉取失败时按无授权处理（fail closed），返回 ErrPaymentRequired。
func (g *Gate) Authorize(ctx context.Context, session auth.Session, templateID resume.TemplateID) error {
	if !session.Valid() {
		return ErrPaymentRequired
	}
	paid := Set{}
	if g.source != nil {
		snapshot, err := g.source.PaidTemplates(ctx, session.UserID)
		if err != nil {
			g.logger.Warn("entitlement fetch failed, treating as no entitlements",
				slog.Uint64("user_id", uint64(session.UserID)),
				slog.Any("error", err),
			)
		} else if snapshot != nil {
			paid = snapshot
		}
	}
	if !IsExportAllowed(session.UserID, templateID, paid) {
		return ErrPaymentRequired
	}
	return nil
}

// Snapshot 返回当前用户的授权集合；拉取失败时返回空集合与原始错误。
func (g *Gate) Snapshot(ctx context.Context, session auth.Session) (Set, error) {
	if !session.Valid() || g.source == nil {
		return Set{}, nil
	}
	paid, err := g.source.PaidTemplates(ctx, session.UserID)
	if err != nil || paid == nil {
		return Set{}, err
	}
	return paid, nil
}
