package resume

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Photo 只能处于两种状态之一：已存储对象的引用，或等待上传的本地二进制。
// 零值表示没有照片。
type Photo struct {
	ref     string
	pending []byte
}

// PhotoRef 构造指向已存储对象的照片。
func PhotoRef(key string) Photo {
	return Photo{ref: strings.TrimSpace(key)}
}

// PendingPhoto 构造待上传的照片；data 会被复制。
func PendingPhoto(data []byte) Photo {
	if len(data) == 0 {
		return Photo{}
	}
	return Photo{pending: bytes.Clone(data)}
}

func (p Photo) Ref() string { return p.ref }

// Pending 返回待上传数据的副本。
func (p Photo) Pending() []byte { return bytes.Clone(p.pending) }

func (p Photo) IsPending() bool { return len(p.pending) > 0 }

func (p Photo) IsEmpty() bool { return p.ref == "" && len(p.pending) == 0 }

func (p Photo) clone() Photo {
	return Photo{ref: p.ref, pending: bytes.Clone(p.pending)}
}

// MarshalJSON 只序列化引用；待上传的二进制通过单独的 multipart 部分提交。
func (p Photo) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ref)
}

// UnmarshalJSON 容忍 null、缺失以及非字符串值。
func (p *Photo) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*p = Photo{}
		return nil
	}
	*p = PhotoRef(s)
	return nil
}
