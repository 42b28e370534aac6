package fetch

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError 资源不存在（404），永久失败，不重试
type NotFoundError struct {
	Endpoint string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("资源不存在: %s", e.Endpoint)
}

// RetryableError 可重试失败（429/503/5xx/网络错误），DelayHint为建议退避
type RetryableError struct {
	Endpoint    string
	StatusCode  int // 网络错误时为0
	RateLimited bool
	DelayHint   time.Duration
	Err         error
}

func (e *RetryableError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("触发限流(status=%d): %s", e.StatusCode, e.Endpoint)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("临时失败(status=%d): %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("网络错误: %s: %v", e.Endpoint, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// ExhaustedRetriesError 重试预算耗尽后的最终失败
type ExhaustedRetriesError struct {
	Endpoint string
	Attempts int
	LastErr  error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("重试%d次后仍失败: %s: %v", e.Attempts, e.Endpoint, e.LastErr)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.LastErr }

// IsNotFound 是否为永久性404失败
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AsRetryable 尝试解包为可重试错误
func AsRetryable(err error) (*RetryableError, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
