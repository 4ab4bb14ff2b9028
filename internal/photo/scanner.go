package photo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dutchcoders/go-clamd"
)

// Scanner 检查上传数据是否安全。
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

type noopScanner struct{}

func (noopScanner) Scan(context.Context, []byte) error { return nil }

// ClamdScanner 通过 clamd INSTREAM 扫描。
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 返回扫描器；address 为空时返回 nil，表示不扫描。
func NewClamdScanner(address string) Scanner {
	if address == "" {
		return nil
	}
	return &ClamdScanner{client: clamd.NewClamd(address)}
}

func (s *ClamdScanner) Scan(ctx context.Context, data []byte) error {
	abort := make(chan bool, 1)
	results, err := s.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("scan photo: %w", err)
	}
	defer close(abort)

	for {
		select {
		case <-ctx.Done():
			abort <- true
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			if result.Status != clamd.RES_OK {
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			}
		}
	}
}
