package templates

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/resume"
)

// CatalogEntry 是模板目录中的一项。
type CatalogEntry struct {
	ID              resume.TemplateID `json:"id"`
	Label           string            `json:"label"`
	PreviewImageKey string            `json:"preview_image_key"`
}

// Key 由预览图文件名去掉扩展名得到，例如 "modern.png" -> "modern"。
func (e CatalogEntry) Key() string {
	name := path.Base(strings.TrimSpace(e.PreviewImageKey))
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

// Catalog 是模板目录协作方。
type Catalog interface {
	List(ctx context.Context) ([]CatalogEntry, error)
	Get(ctx context.Context, id resume.TemplateID) (CatalogEntry, bool, error)
}

// DBCatalog 基于 templates 表实现 Catalog。
type DBCatalog struct {
	db *gorm.DB
}

func NewDBCatalog(db *gorm.DB) *DBCatalog {
	return &DBCatalog{db: db}
}

func (c *DBCatalog) List(ctx context.Context) ([]CatalogEntry, error) {
	var rows []database.Template
	if err := c.db.WithContext(ctx).Order("position ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromModel(row))
	}
	return entries, nil
}

func (c *DBCatalog) Get(ctx context.Context, id resume.TemplateID) (CatalogEntry, bool, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(string(id)), 10, 64)
	if err != nil || n == 0 {
		return CatalogEntry{}, false, nil
	}
	var row database.Template
	switch err := c.db.WithContext(ctx).First(&row, n).Error; {
	case err == nil:
		return entryFromModel(row), true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return CatalogEntry{}, false, nil
	default:
		return CatalogEntry{}, false, fmt.Errorf("get template %s: %w", id, err)
	}
}

func entryFromModel(t database.Template) CatalogEntry {
	return CatalogEntry{
		ID:              resume.TemplateID(strconv.FormatUint(uint64(t.ID), 10)),
		Label:           t.Label,
		PreviewImageKey: t.PreviewImageKey,
	}
}

// Seed 写入内置模板对应的目录条目，已存在的预览图键会被跳过。返回新插入的数量。
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	inserted := 0
	for i, b := range builtins {
		row := database.Template{
			Label:           b.label,
			PreviewImageKey: b.key + ".png",
			Position:        i + 1,
		}
		res := db.WithContext(ctx).
			Where(database.Template{PreviewImageKey: row.PreviewImageKey}).
			FirstOrCreate(&row)
		if res.Error != nil {
			return inserted, fmt.Errorf("seed template %s: %w", b.key, res.Error)
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// Resolution 是一次模板解析的结果。Found 为 false 时 Renderer 为占位渲染器。
type Resolution struct {
	Entry    CatalogEntry
	Key      string
	Renderer Renderer
	Found    bool
}

// Listing 是目录条目及其可用性。
type Listing struct {
	CatalogEntry
	Key       string `json:"key"`
	Available bool   `json:"available"`
}

// Resolver 组合目录与注册表：TemplateID -> 目录条目 -> 模板键 -> 渲染器。
type Resolver struct {
	registry *Registry
	catalog  Catalog
}

func NewResolver(registry *Registry, catalog Catalog) *Resolver {
	return &Resolver{registry: registry, catalog: catalog}
}

// Registry 暴露底层注册表。
func (r *Resolver) Registry() *Registry { return r.registry }

// ForDocument 为文档选择渲染器。空模板、未知模板或未注册的键都会落到占位渲染器；
// 只有目录查询本身失败时才返回错误。
func (r *Resolver) ForDocument(ctx context.Context, doc resume.Document) (Resolution, error) {
	return r.ForTemplate(ctx, doc.TemplateID)
}

func (r *Resolver) ForTemplate(ctx context.Context, id resume.TemplateID) (Resolution, error) {
	placeholder := Resolution{Renderer: r.registry.Placeholder()}
	if strings.TrimSpace(string(id)) == "" || r.catalog == nil {
		return placeholder, nil
	}
	entry, ok, err := r.catalog.Get(ctx, id)
	if err != nil {
		return placeholder, err
	}
	if !ok {
		return placeholder, nil
	}
	placeholder.Entry = entry
	placeholder.Key = entry.Key()
	renderer, found := r.registry.Resolve(placeholder.Key)
	if !found {
		return placeholder, nil
	}
	return Resolution{Entry: entry, Key: placeholder.Key, Renderer: renderer, Found: true}, nil
}

// List 返回有序目录；没有注册渲染器的条目标记为不可用，而不是报错。
func (r *Resolver) List(ctx context.Context) ([]Listing, error) {
	if r.catalog == nil {
		return []Listing{}, nil
	}
	entries, err := r.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(entries))
	for _, e := range entries {
		key := e.Key()
		_, available := r.registry.Resolve(key)
		out = append(out, Listing{CatalogEntry: e, Key: key, Available: available})
	}
	return out, nil
}
