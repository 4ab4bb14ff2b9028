package worker

import "fmt"

// ExportNotifyMessage 是经 Redis Pub/Sub 转发到 WebSocket 的导出通知。
type ExportNotifyMessage struct {
	Status        string `json:"status"` // completed | error
	CVID          uint   `json:"cv_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	Pages         int    `json:"pages,omitempty"`
	Filename      string `json:"filename,omitempty"`
}

// NotifyChannel 返回用户的通知频道。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}
