package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"cvStudio/internal/export"
)

// 任务类型常量，生产者与消费者共用。
const (
	TypeExportPDF = "cv:export_pdf"
)

// ExportPDFPayload 携带入队时刻的简历快照。worker 只使用载荷中的内容，
// 之后对简历或模板选择的修改不会影响这次导出。
type ExportPDFPayload struct {
	CVID          uint            `json:"cv_id"`
	UserID        uint            `json:"user_id"`
	TemplateID    string          `json:"template_id"`
	TemplateKey   string          `json:"template_key"`
	OwnerName     string          `json:"owner_name"`
	Document      json.RawMessage `json:"document"`
	PhotoKey      string          `json:"photo_key,omitempty"`
	Options       export.Options  `json:"options"`
	CorrelationID string          `json:"correlation_id"`
}

// NewExportPDFTask 构造一个 Raster-Paginate 导出任务。
func NewExportPDFTask(p ExportPDFPayload) (*asynq.Task, error) {
	if p.CVID == 0 || p.UserID == 0 {
		return nil, fmt.Errorf("export task requires cv and user ids")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportPDF, payload, asynq.MaxRetry(2)), nil
}

// DecodeExportPDF 解析任务载荷。
func DecodeExportPDF(t *asynq.Task) (ExportPDFPayload, error) {
	var p ExportPDFPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ExportPDFPayload{}, fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	return p, nil
}
