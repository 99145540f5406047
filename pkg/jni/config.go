package jni

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
)

const (
	envClassPath     = "CLASSPATH"
	envMaxGlobalRefs = "GOJNI_MAX_GLOBAL_REFS"
)

// Config configures a Provider.
type Config struct {
	// ClassPath is the runtime class search path. It is required.
	ClassPath string
	// MaxGlobalRefs bounds the global reference table. 0 means unbounded.
	MaxGlobalRefs int
	// Stdout and Stderr receive System.out and System.err. nil selects the
	// process streams.
	Stdout io.Writer
	Stderr io.Writer
	// Abort handles fatal errors. The default logs at fatal level, which
	// exits the process. If Abort returns, the fatal error is returned to
	// the caller.
	Abort func(err error)
}

// ConfigFromEnv builds a Config from the process environment.
func ConfigFromEnv() (Config, error) {
	cfg := Config{ClassPath: os.Getenv(envClassPath)}
	if s := os.Getenv(envMaxGlobalRefs); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("jni: invalid %s %q", envMaxGlobalRefs, s)
		}
		cfg.MaxGlobalRefs = n
	}
	return cfg, nil
}

func (c Config) abort(err error) {
	if c.Abort != nil {
		c.Abort(err)
		return
	}
	Logger().Fatal("jni: unrecoverable runtime error", zap.Error(err))
}
