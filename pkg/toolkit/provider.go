package toolkit

import (
	"context"
	"sync"

	"github.com/rahul/browsekit/pkg/browser"
)

// Option configures how a tool (or a whole Toolkit) resolves its session.
type Option func(*settings)

type settings struct {
	session browser.Session
	factory browser.Factory
}

// WithSession makes every tool operate on the given pre-built session. The
// session stays owned by the caller: the toolkit never initializes or closes
// it, and no private session is ever created.
func WithSession(s browser.Session) Option {
	return func(cfg *settings) {
		cfg.session = s
	}
}

// WithFactory overrides how a tool builds its private session when no shared
// one was supplied.
func WithFactory(f browser.Factory) Option {
	return func(cfg *settings) {
		cfg.factory = f
	}
}

// sessionProvider resolves the session a tool operates on: the shared one it
// was constructed with, or a private one created and initialized on first use.
// The once guard memoizes the whole first initialization, including its
// error, so concurrent first calls can never create two sessions.
type sessionProvider struct {
	shared  browser.Session
	factory browser.Factory

	once    sync.Once
	local   browser.Session
	initErr error
}

func newSessionProvider(opts []Option) *sessionProvider {
	cfg := settings{factory: defaultFactory}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &sessionProvider{shared: cfg.session, factory: cfg.factory}
}

func (p *sessionProvider) session(ctx context.Context) (browser.Session, error) {
	if p.shared != nil {
		return p.shared, nil
	}

	p.once.Do(func() {
		s := p.factory()
		if err := s.Init(ctx); err != nil {
			p.initErr = err
			return
		}
		p.local = s
	})

	if p.initErr != nil {
		return nil, p.initErr
	}
	return p.local, nil
}

// close shuts down the provider's private session, if one was created.
// Shared sessions belong to the caller and are left alone.
func (p *sessionProvider) close() error {
	if p.local != nil {
		return p.local.Close()
	}
	return nil
}
