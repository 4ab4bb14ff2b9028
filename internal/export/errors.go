package export

import (
	"errors"
)

// ErrorKind 是导出失败的分类。
type ErrorKind string

const (
	KindRenderTargetMissing ErrorKind = "render_target_missing"
	KindImageLoadTimeout    ErrorKind = "image_load_timeout"
	KindRasterizationFailed ErrorKind = "rasterization_failed"
	KindAssemblyFailed      ErrorKind = "assembly_failed"
	// KindPrintFailed 覆盖打印路径上除缺失渲染目标以外的失败（样式表读取被拒、隔离页面不可用）。
	KindPrintFailed ErrorKind = "print_failed"
	KindInternal    ErrorKind = "internal"
)

// 面向用户的提示语。
const (
	MsgNoTemplateSelected = "No template selected: choose a template before exporting."
	MsgImageLoadTimeout   = "An image in your CV could not be loaded in time. Please check your photo and try again."
	MsgRasterization      = "The CV preview produced no visible content and could not be exported."
	MsgAssembly           = "The PDF document could not be assembled. Please try again."
	MsgInternal           = "Export failed. Please try again."
)

// Error 携带导出失败的分类。Msg 是面向日志的描述，User 是面向用户的提示语。
type Error struct {
	Kind ErrorKind
	Msg  string
	User string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按分类比较，使 errors.Is(err, ErrImageLoadTimeout) 成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// 仅用于 errors.Is 比较的哨兵值。
var (
	ErrRenderTargetMissing = &Error{Kind: KindRenderTargetMissing}
	ErrImageLoadTimeout    = &Error{Kind: KindImageLoadTimeout}
	ErrRasterizationFailed = &Error{Kind: KindRasterizationFailed}
	ErrAssemblyFailed      = &Error{Kind: KindAssemblyFailed}
	ErrPrintFailed         = &Error{Kind: KindPrintFailed}
)

// KindFromError maps an error to its export error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var exportErr *Error
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}
	return KindInternal
}

// UserMessage 返回错误对应的用户提示。打印路径上的错误统一提示未选择模板。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var exportErr *Error
	if errors.As(err, &exportErr) && exportErr.User != "" {
		return exportErr.User
	}
	return MessageForKind(KindFromError(err))
}

// MessageForKind 返回每个分类唯一的用户提示。
func MessageForKind(kind ErrorKind) string {
	switch kind {
	case KindRenderTargetMissing, KindPrintFailed:
		return MsgNoTemplateSelected
	case KindImageLoadTimeout:
		return MsgImageLoadTimeout
	case KindRasterizationFailed:
		return MsgRasterization
	case KindAssemblyFailed:
		return MsgAssembly
	default:
		return MsgInternal
	}
}
