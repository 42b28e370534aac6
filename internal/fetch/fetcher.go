package fetch

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	windowSize   = 60 * time.Second // 滚动限流窗口长度
	maxJitter    = 500 * time.Millisecond
	maxBodyBytes = 4 << 20 // 单页响应体上限4MiB
)

// Fetcher 单个来源专用的限流重试抓取器。
// 限流窗口与并发闸门都是实例私有状态（互斥锁保护），
// 每个来源一个实例，来源之间互不阻塞。
type Fetcher struct {
	source string
	cfg    *config.SourceConfig
	client *http.Client
	logger *logrus.Logger
	clock  Clock

	mu     sync.Mutex
	window []time.Time // 窗口内的请求时间戳，按时间递增

	gate chan struct{} // 在途请求并发闸门
}

// NewFetcher 创建来源专用抓取器
func NewFetcher(source string, cfg *config.SourceConfig, logger *logrus.Logger) *Fetcher {
	return NewFetcherWithClock(source, cfg, logger, NewRealClock())
}

// NewFetcherWithClock 注入时钟的构造（测试用）
func NewFetcherWithClock(source string, cfg *config.SourceConfig, logger *logrus.Logger, clock Clock) *Fetcher {
	return &Fetcher{
		source: source,
		cfg:    cfg,
		client: newHTTPClient(cfg, logger),
		logger: logger,
		clock:  clock,
		window: make([]time.Time, 0, cfg.RateLimitPerMinute),
		gate:   make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Fetch 抓取单个页面。
// 404返回NotFoundError不重试；429/503/5xx/网络错误按 base×2^attempt 退避重试，
// 预算耗尽返回ExhaustedRetriesError；2xx返回响应体。
func (f *Fetcher) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	// 1. 占用并发闸门
	select {
	case f.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-f.gate }()

	base := time.Duration(f.cfg.RetryBaseDelayMs) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 2. 滚动窗口限流（到容量则睡到窗口腾出空位）
		f.waitForWindow()

		body, err := f.doRequest(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if IsNotFound(err) {
			return nil, err
		}
		retryable, ok := AsRetryable(err)
		if !ok {
			return nil, err
		}
		lastErr = err

		if attempt == f.cfg.MaxRetries {
			break
		}

		// 3. 指数退避（服务端给出更长的Retry-After时听服务端的）
		delay := base * (1 << attempt)
		if retryable.DelayHint > delay {
			delay = retryable.DelayHint
		}
		f.logger.WithField("source", f.source).WithField("attempt", attempt+1).
			Warnf("抓取失败将在%v后重试: %v", delay, err)
		f.clock.Sleep(delay)
	}

	return nil, &ExhaustedRetriesError{Endpoint: endpoint, Attempts: f.cfg.MaxRetries + 1, LastErr: lastErr}
}

// waitForWindow 淘汰60秒前的时间戳；窗口已满则睡到最老一条过期再登记本次请求
func (f *Fetcher) waitForWindow() {
	for {
		f.mu.Lock()
		now := f.clock.Now()
		f.evictLocked(now)
		if len(f.window) < f.cfg.RateLimitPerMinute {
			f.window = append(f.window, now)
			f.mu.Unlock()
			return
		}
		// 需等待的时间 = 最老时间戳距离滑出窗口的剩余时间 + 少量抖动
		wait := windowSize - now.Sub(f.window[0]) + time.Duration(rand.Int63n(int64(maxJitter)))
		f.mu.Unlock()

		f.logger.WithField("source", f.source).Debugf("限流窗口已满，等待%v", wait)
		f.clock.Sleep(wait)
	}
}

func (f *Fetcher) evictLocked(now time.Time) {
	cut := 0
	for cut < len(f.window) && now.Sub(f.window[cut]) >= windowSize {
		cut++
	}
	if cut > 0 {
		f.window = f.window[cut:]
	}
}

func (f *Fetcher) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &RetryableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Endpoint: endpoint}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &RetryableError{
			Endpoint:    endpoint,
			StatusCode:  resp.StatusCode,
			RateLimited: true,
			DelayHint:   retryAfterHint(resp),
		}
	case resp.StatusCode >= 500:
		return nil, &RetryableError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &RetryableError{Endpoint: endpoint, Err: err}
		}
		return body, nil
	default:
		// 其余状态码（3xx/4xx）视为临时失败交给重试预算
		return nil, &RetryableError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
}

func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
