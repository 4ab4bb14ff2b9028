package export

import (
	"strings"
	"time"
	"unicode"
)

// DefaultFilename 生成 CV_<Owner>_<YYYY-MM-DD>.pdf；owner 为空时省略该段。
func DefaultFilename(owner string, now time.Time) string {
	date := now.Format("2006-01-02")
	owner = sanitizeSegment(owner)
	if owner == "" {
		return "CV_" + date + ".pdf"
	}
	return "CV_" + owner + "_" + date + ".pdf"
}

// sanitizeSegment 把空白压缩为下划线，并去掉文件名中不安全的字符。
func sanitizeSegment(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			b.WriteRune(r)
			underscore = false
		case unicode.IsSpace(r) || r == '_':
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_.")
}

func normalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-len(".pdf")]
	}
	name = sanitizeSegment(name)
	if name == "" {
		return ""
	}
	return name + ".pdf"
}
