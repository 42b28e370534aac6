package fetch

import "time"

// Clock 单调时钟与休眠的注入点（测试用假时钟验证限流窗口）
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// NewRealClock 返回系统时钟
func NewRealClock() Clock { return realClock{} }
