package arxiv

import (
	"context"
	"math/rand/v2"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/pkg/log"
)

// retry 最多执行 fn attempts 次。只有 apperr.ErrUpstream 类错误会重试，
// 第 n 次重试前等待 [0, baseDelay*2^(n-1)) 之间的随机时长（full jitter）。
// 重试耗尽后返回最后一次的错误。
func retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !apperr.IsUpstream(err) || attempt == attempts-1 {
			return err
		}

		wait := fullJitter(baseDelay, attempt)
		log.Warnf("[ArxivClient] 第 %d/%d 次请求失败, %v 后重试: %v", attempt+1, attempts, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func fullJitter(base time.Duration, attempt int) time.Duration {
	ceiling := base << attempt
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
