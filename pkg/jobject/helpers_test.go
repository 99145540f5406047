package jobject

import (
	"context"
	"io"
	"testing"

	"github.com/daimatz/gojni/pkg/jni"
)

// attach starts a runtime over an empty class path; the JDK classes these
// handles wrap are built in.
func attach(t *testing.T) (*jni.Provider, jni.Env) {
	t.Helper()
	p := jni.NewProvider(jni.Config{
		ClassPath: t.TempDir(),
		Stdout:    io.Discard,
		Stderr:    io.Discard,
		Abort:     func(err error) { t.Errorf("abort: %v", err) },
	})
	_, s, err := p.Attach(context.Background())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		if err := p.Shutdown(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return p, s.Env()
}

func closeOrFail(t *testing.T, c interface{ Close() error }) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
