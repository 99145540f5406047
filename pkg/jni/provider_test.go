package jni

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestProviderNestedAttach(t *testing.T) {
	p, _ := newTestProvider(t)

	ctx, outer, err := p.Attach(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.VM().AttachedThreads(); got != 1 {
		t.Fatalf("attached threads = %d, want 1", got)
	}

	_, inner, err := p.Attach(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if inner.Env().Native() != outer.Env().Native() {
		t.Error("nested scope attached a different thread")
	}
	if err := inner.Close(); err != nil {
		t.Fatal(err)
	}
	if got := p.VM().AttachedThreads(); got != 1 {
		t.Errorf("nested Close detached: attached threads = %d", got)
	}
	// the outer env is still usable
	if _, err := outer.Env().NewString("alive"); err != nil {
		t.Errorf("outer scope unusable after nested Close: %v", err)
	}

	if err := outer.Close(); err != nil {
		t.Fatal(err)
	}
	if got := p.VM().AttachedThreads(); got != 0 {
		t.Errorf("attached threads after Close = %d", got)
	}
	if err := outer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// a closed scope in ctx no longer counts as an attachment
	_, again, err := p.Attach(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if got := p.VM().AttachedThreads(); got != 1 {
		t.Errorf("attach through stale ctx: attached threads = %d", got)
	}
}

func TestProviderDo(t *testing.T) {
	p, _ := newTestProvider(t)
	sentinel := errors.New("stop")

	err := p.Do(context.Background(), func(ctx context.Context, env Env) error {
		if got := p.VM().AttachedThreads(); got != 1 {
			t.Errorf("attached threads = %d", got)
		}
		return p.Do(ctx, func(_ context.Context, inner Env) error {
			if inner.Native() != env.Native() {
				t.Error("nested Do attached another thread")
			}
			return sentinel
		})
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Do = %v, want %v", err, sentinel)
	}
	if got := p.VM().AttachedThreads(); got != 0 {
		t.Errorf("attached threads after Do = %d", got)
	}
}

func TestProviderFatalStartup(t *testing.T) {
	tests := []struct {
		name      string
		classPath string
	}{
		{"missing class path", ""},
		{"unreadable class path", filepath.Join(t.TempDir(), "absent")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var aborts []error
			p := NewProvider(Config{ClassPath: tt.classPath, Abort: func(err error) { aborts = append(aborts, err) }})
			_, s, err := p.Attach(context.Background())
			if s != nil {
				t.Fatal("Attach returned a scope")
			}
			asError(t, err, ErrFatal)
			if len(aborts) != 1 || aborts[0] != err {
				t.Errorf("abort hook saw %v, want %v", aborts, err)
			}
			if p.VM() != nil {
				t.Error("runtime created")
			}
			if err := p.Shutdown(); err != nil {
				t.Errorf("Shutdown: %v", err)
			}
		})
	}
}

func TestProviderShutdown(t *testing.T) {
	p := NewProvider(Config{ClassPath: writeProbe(t)})
	_, s, err := p.Attach(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Env().Resolve("demo/Probe"); err != nil {
		t.Fatal(err)
	}

	if err := p.Shutdown(); !errors.Is(err, ErrAttach) {
		t.Errorf("Shutdown with an open scope = %v", err)
	}
	s.Close()
	v := p.VM()
	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := v.GlobalRefCount(); got != 0 {
		t.Errorf("global refs after Shutdown = %d", got)
	}
	if p.Cache().Len() != 0 {
		t.Errorf("cache not emptied")
	}
	if _, _, err := p.Attach(context.Background()); !errors.Is(err, ErrAttach) {
		t.Errorf("Attach after Shutdown = %v", err)
	}
	if err := p.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(envClassPath, "/opt/classes")
	t.Setenv(envMaxGlobalRefs, "64")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClassPath != "/opt/classes" || cfg.MaxGlobalRefs != 64 {
		t.Errorf("ConfigFromEnv() = %+v", cfg)
	}

	t.Setenv(envMaxGlobalRefs, "lots")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("invalid limit accepted")
	}
}

func TestProviderGlobalRefLimit(t *testing.T) {
	p, _ := newTestProvider(t, Config{MaxGlobalRefs: 2})
	env := attach(t, p)

	if _, err := env.Resolve("demo/Probe"); err != nil {
		t.Fatal(err)
	}
	s, _ := env.NewString("one")
	first, err := NewObject(env, s)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	s, _ = env.NewString("two")
	_, err = NewObject(env, s)
	je := asError(t, err, ErrReference)
	if je.Class != "java/lang/String" {
		t.Errorf("Class = %q", je.Class)
	}
	if env.HasException() {
		t.Error("overflow left an exception pending")
	}
}
