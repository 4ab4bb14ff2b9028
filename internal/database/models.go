package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CV 导出状态。
const (
	StatusDraft     = "draft"
	StatusExporting = "exporting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// EntitlementPaid 表示支付协作方确认过的授权。
const EntitlementPaid = "paid"

// User 表示由认证协作方签发的账号在本服务中的投影。
type User struct {
	gorm.Model
	Username    string `gorm:"uniqueIndex;size:64"`
	DisplayName string `gorm:"size:128"`
	CVs         []CV   `gorm:"constraint:OnDelete:CASCADE"`
}

// CV 持久化一份简历文档。Content 保存 resume.Document 的 JSON，照片只保存对象键。
type CV struct {
	gorm.Model
	Title           string         `gorm:"size:255"`
	TemplateID      string         `gorm:"size:64;index"`
	Content         datatypes.JSON `gorm:"type:jsonb"`
	PhotoKey        string         `gorm:"size:512"`
	UserID          uint           `gorm:"index"`
	User            User           `gorm:"constraint:OnDelete:CASCADE"`
	PdfUrl          string         `gorm:"size:512"`
	PdfFilename     string         `gorm:"size:255"`
	Status          string         `gorm:"size:32"`
	LastExportError string         `gorm:"size:255"`
}

// Template 是模板目录条目。PreviewImageKey 去掉扩展名后即为渲染器注册键。
type Template struct {
	gorm.Model
	Label           string `gorm:"size:128"`
	PreviewImageKey string `gorm:"size:255"`
	Position        int    `gorm:"index"`
}

// Entitlement 记录用户对某个模板的导出授权。
type Entitlement struct {
	gorm.Model
	UserID     uint   `gorm:"uniqueIndex:idx_entitlement_user_template"`
	TemplateID string `gorm:"size:64;uniqueIndex:idx_entitlement_user_template"`
	Status     string `gorm:"size:32"`
}

// Models 返回需要迁移的全部模型。
func Models() []any {
	return []any{&User{}, &CV{}, &Template{}, &Entitlement{}}
}
