package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/proxy"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type Options struct {
	Headless   bool
	UserAgent  string
	DelayMin   time.Duration
	DelayMax   time.Duration
	NavTimeout time.Duration
	Proxy      *proxy.Config
}

// Session owns one Chrome process. It is exclusively owned by the job
// that opened it; Close must run on every exit path.
type Session struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	opts       Options
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.Proxy != nil {
		flags = append(flags, chromedp.ProxyServer(opts.Proxy.Addr()))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, flags...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Launch the process up front so a broken Chrome install fails the
	// job here, not on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Session{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{cancelBrowser, cancelAlloc},
		opts:       opts,
	}, nil
}

// NewPage opens a short-lived tab. The returned cancel closes the tab
// and must always run. Navigation timeouts are per operation, not per
// page: wrap individual runs with NavTimeout.
func (s *Session) NewPage() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(s.browserCtx)
}

// NavTimeout bounds one navigation or content read. Exceeding it is a
// per-target failure, never a job failure.
func (s *Session) NavTimeout() time.Duration {
	return s.opts.NavTimeout
}

// Delay returns a randomized pause inside the configured window, used
// between page actions to reduce detection risk.
func (s *Session) Delay() time.Duration {
	min, max := s.opts.DelayMin, s.opts.DelayMax
	if min <= 0 && max <= 0 {
		return 0
	}
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}
