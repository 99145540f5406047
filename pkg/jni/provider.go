package jni

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/daimatz/gojni/pkg/vm"
)

// Provider owns the runtime instance and hands out attached contexts. The
// runtime is created on first Attach.
type Provider struct {
	cfg Config

	mu    sync.Mutex
	vm    *vm.VM
	cache *ClassCache
	down  bool
}

// NewProvider returns a provider for cfg. No runtime is created until the
// first Attach.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg, cache: NewClassCache()}
}

var (
	defaultOnce     sync.Once
	defaultProvider *Provider
)

// Default returns the process-wide provider configured from the
// environment.
func Default() *Provider {
	defaultOnce.Do(func() {
		cfg, err := ConfigFromEnv()
		if err != nil {
			Logger().Warn("jni: ignoring invalid configuration", zap.Error(err))
		}
		defaultProvider = NewProvider(cfg)
	})
	return defaultProvider
}

// Cache returns the class cache shared by every Env of the provider.
func (p *Provider) Cache() *ClassCache { return p.cache }

type scopeKey struct{ p *Provider }

// Scope is one acquisition of an attached context. Only the scope that
// attached the thread detaches it.
type Scope struct {
	p      *Provider
	thread *vm.Thread
	env    Env
	owner  bool
	closed bool
}

// Env returns the context of the scope.
func (s *Scope) Env() Env { return s.env }

// Close detaches the thread if this scope attached it. It is safe to call
// more than once.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.owner {
		return nil
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.vm.DetachCurrentThread(s.thread); err != nil {
		return &Error{Kind: KindAttach, Detail: "detach failed", Cause: err}
	}
	Logger().Debug("jni: detached thread", zap.Int("attached", s.p.vm.AttachedThreads()))
	return nil
}

// Attach returns an attached context. If ctx already carries an open scope
// of p, the returned scope reuses its thread and its Close does nothing.
// Otherwise a thread is attached and the returned ctx carries the new
// scope for nested use.
func (p *Provider) Attach(ctx context.Context) (context.Context, *Scope, error) {
	if outer, ok := ctx.Value(scopeKey{p}).(*Scope); ok && !outer.closed {
		return ctx, &Scope{p: p, thread: outer.thread, env: outer.env}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return ctx, nil, newError(KindAttach, "", "", "provider is shut down")
	}
	if p.vm == nil {
		if err := p.create(); err != nil {
			return ctx, nil, err
		}
	}
	th, err := p.vm.AttachCurrentThread()
	if err != nil {
		return ctx, nil, &Error{Kind: KindAttach, Detail: "attach failed", Cause: err}
	}
	s := &Scope{p: p, thread: th, owner: true, env: p.env(th)}
	Logger().Debug("jni: attached thread", zap.Int("attached", p.vm.AttachedThreads()))
	return context.WithValue(ctx, scopeKey{p}, s), s, nil
}

func (p *Provider) env(th *vm.Thread) Env {
	return Env{native: th, cache: p.cache, abort: p.cfg.abort}
}

// create starts the runtime. p.mu must be held.
func (p *Provider) create() error {
	if p.cfg.ClassPath == "" {
		return p.fatal(&Error{Kind: KindFatal, Detail: envClassPath + " is not set"})
	}
	v, err := vm.Create(vm.Options{
		ClassPath:     p.cfg.ClassPath,
		MaxGlobalRefs: p.cfg.MaxGlobalRefs,
		Stdout:        p.cfg.Stdout,
		Stderr:        p.cfg.Stderr,
	})
	if err != nil {
		return p.fatal(&Error{Kind: KindFatal, Detail: "could not create runtime", Cause: err})
	}
	p.vm = v
	Logger().Info("jni: runtime created",
		zap.String("classpath", p.cfg.ClassPath),
		zap.Int("max_global_refs", p.cfg.MaxGlobalRefs))
	return nil
}

func (p *Provider) fatal(err *Error) error {
	p.cfg.abort(err)
	return err
}

// Do runs fn with an attached context, detaching afterwards if this call
// attached.
func (p *Provider) Do(ctx context.Context, fn func(context.Context, Env) error) (err error) {
	ctx, s, err := p.Attach(ctx)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()
	return fn(ctx, s.env)
}

// VM returns the runtime, or nil before the first Attach.
func (p *Provider) VM() *vm.VM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vm
}

// Shutdown releases the class cache and destroys the runtime. Every scope
// must be closed first. The provider cannot be used afterwards.
func (p *Provider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return nil
	}
	if p.vm == nil {
		p.down = true
		return nil
	}
	if n := p.vm.AttachedThreads(); n > 0 {
		return newError(KindAttach, "", "", "scopes still open")
	}
	var err error
	th, aerr := p.vm.AttachCurrentThread()
	if aerr != nil {
		err = multierr.Append(err, aerr)
	} else {
		err = multierr.Append(err, p.cache.Close(th))
		err = multierr.Append(err, p.vm.DetachCurrentThread(th))
	}
	if derr := p.vm.Destroy(); derr != nil && !errors.Is(derr, vm.ErrDestroyed) {
		err = multierr.Append(err, derr)
	}
	p.down = true
	Logger().Info("jni: runtime destroyed", zap.Error(err))
	return err
}
