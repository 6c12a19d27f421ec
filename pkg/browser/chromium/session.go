// Package chromium implements browser.Session on top of a locally launched
// Chrome driven through the DevTools protocol.
//
// Natural-language instructions (act, extract, instruction-scoped observe)
// are interpreted by a langchaingo model when one is configured; act and
// observe fall back to keyword heuristics without one, extract requires it.
package chromium

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rahul/browsekit/internal/store"
	"github.com/rahul/browsekit/pkg/browser"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultTimeout = 60 * time.Second

type config struct {
	headless  bool
	userAgent string
	timeout   time.Duration
	caching   bool
	cachePath string
}

// Option configures a Session before Init.
type Option func(*Session)

// WithHeadless controls whether Chrome runs without a visible window.
// Sessions are headless by default.
func WithHeadless(headless bool) Option {
	return func(s *Session) { s.cfg.headless = headless }
}

// WithUserAgent overrides the browser's user agent string.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.cfg.userAgent = ua }
}

// WithTimeout bounds each browser operation. Default is 60s.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.cfg.timeout = d }
}

// WithModel sets the language model used to interpret instructions. Without
// one, Init falls back to an environment-configured OpenAI client when
// OPENAI_API_KEY is set.
func WithModel(m llms.Model) Option {
	return func(s *Session) { s.model = m }
}

// WithCaching enables the sqlite extraction cache at its default location.
func WithCaching(enabled bool) Option {
	return func(s *Session) { s.cfg.caching = enabled }
}

// WithCachePath enables caching backed by the given sqlite file.
func WithCachePath(path string) Option {
	return func(s *Session) {
		s.cfg.caching = true
		s.cfg.cachePath = path
	}
}

// WithCache injects an existing cache store (shared with other sessions).
func WithCache(c *store.Cache) Option {
	return func(s *Session) {
		s.cfg.caching = true
		s.cache = c
	}
}

// Session drives one local Chrome browser context.
type Session struct {
	mu  sync.Mutex
	cfg config

	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	model    llms.Model
	cache    *store.Cache
	ownCache bool
}

var _ browser.Session = (*Session)(nil)

// New builds an uninitialized session. Call Init before use.
func New(opts ...Option) *Session {
	s := &Session{
		cfg: config{
			headless: true,
			timeout:  defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init launches Chrome and prepares the session. Calling Init on a live
// session is a no-op; a session whose browser died is relaunched.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		select {
		case <-s.browserCtx.Done():
			s.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", s.cfg.headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if s.cfg.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.userAgent))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx)

	if err := chromedp.Run(s.browserCtx); err != nil {
		s.cleanup()
		return fmt.Errorf("failed to launch browser: %v", err)
	}

	if s.model == nil {
		model, err := openai.New()
		if err != nil {
			log.Printf("chromium: no model configured, act/extract run degraded: %v", err)
		} else {
			s.model = model
		}
	}

	if s.cfg.caching && s.cache == nil {
		cache, err := store.NewCache(s.cachePath())
		if err != nil {
			log.Printf("chromium: disabling result cache: %v", err)
		} else {
			s.cache = cache
			s.ownCache = true
		}
	}

	return nil
}

func (s *Session) cachePath() string {
	if s.cfg.cachePath != "" {
		return s.cfg.cachePath
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "browsekit")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return filepath.Join(os.TempDir(), "browsekit_cache.db")
	}
	return filepath.Join(dir, "cache.db")
}

func (s *Session) cleanup() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.allocCtx = nil
}

// Close shuts the browser down and releases the cache if this session
// created it.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanup()

	if s.cache != nil && s.ownCache {
		if err := s.cache.Close(); err != nil {
			return err
		}
		s.cache = nil
	}
	return nil
}

// run executes chromedp actions against the live browser with the session's
// per-operation timeout, the way every capability call goes through.
func (s *Session) run(actions ...chromedp.Action) error {
	s.mu.Lock()
	bctx := s.browserCtx
	timeout := s.cfg.timeout
	s.mu.Unlock()

	if bctx == nil {
		return fmt.Errorf("session not initialized")
	}

	actionCtx, cancel := context.WithTimeout(bctx, timeout)
	defer cancel()
	return chromedp.Run(actionCtx, actions...)
}

// Goto navigates to the URL and waits for the document body.
func (s *Session) Goto(ctx context.Context, url string) error {
	if err := s.run(chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation failed: %v", err)
	}
	return nil
}

func (s *Session) currentURL() (string, error) {
	var url string
	if err := s.run(chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current location: %v", err)
	}
	return url, nil
}
