// Command gojni invokes one method through the bridge and prints the result.
//
//	gojni [flags] <class> <method> <signature> [args...]
//
// Instance methods run on an object built with the class's no-argument
// constructor. Arguments are parsed according to the parameter types of the
// signature; String parameters take the argument text.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf16"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/daimatz/gojni/pkg/jni"
)

var errUsage = errors.New("usage: gojni [flags] <class> <method> <signature> [args...]")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := jni.ConfigFromEnv()
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("gojni", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&cfg.ClassPath, "classpath", "c", cfg.ClassPath, "class search path")
	fs.IntVar(&cfg.MaxGlobalRefs, "max-global-refs", cfg.MaxGlobalRefs, "global reference table limit, 0 for none")
	static := fs.BoolP("static", "s", false, "invoke a static method")
	verbose := fs.BoolP("verbose", "v", false, "log at debug level")
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return errUsage
	}
	className, method, sig := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	logger := newLogger(stderr, *verbose)
	defer logger.Sync()
	jni.SetLogger(logger)
	defer jni.SetLogger(nil)

	cfg.Stdout, cfg.Stderr = stdout, stderr
	// fatal errors are returned, not exited on
	cfg.Abort = func(error) {}
	p := jni.NewProvider(cfg)

	err = p.Do(context.Background(), func(_ context.Context, env jni.Env) error {
		return invoke(env, stdout, className, method, sig, *static, fs.Args()[3:])
	})
	return multierr.Append(err, p.Shutdown())
}

func invoke(env jni.Env, w io.Writer, className, method, sig string, static bool, raw []string) error {
	args, err := parseArgs(env, sig, raw)
	defer func() {
		for _, a := range args {
			if a.Tag == jni.TagObject {
				env.DeleteLocalRef(a.L)
			}
		}
	}()
	if err != nil {
		return err
	}

	var target jni.Ref
	if !static {
		local, err := env.NewObject(className, "()V")
		if err != nil {
			return err
		}
		obj, err := jni.NewObject(env, local)
		if err != nil {
			return err
		}
		defer obj.Close()
		target = obj.Ref()
	}
	v, err := env.CallMethod(target, className, method, sig, static, args...)
	if err != nil {
		return err
	}
	return printValue(env, w, v)
}

func printValue(env jni.Env, w io.Writer, v jni.Value) error {
	switch {
	case v.Tag == jni.TagVoid:
		return nil
	case v.Tag != jni.TagObject:
		_, err := fmt.Fprintln(w, v)
		return err
	case v.L == 0:
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	obj, err := jni.NewObject(env, v.L)
	if err != nil {
		return err
	}
	defer obj.Close()
	s, err := obj.ToString()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

// parseArgs converts command line text to arguments of sig. String
// arguments are returned as local references.
func parseArgs(env jni.Env, sig string, raw []string) ([]jni.Value, error) {
	params, err := jni.ParamTypes(sig)
	if err != nil {
		return nil, err
	}
	if len(params) != len(raw) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", sig, len(params), len(raw))
	}
	out := make([]jni.Value, 0, len(params))
	for i, p := range params {
		v, err := parseArg(env, p, raw[i])
		if err != nil {
			return out, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseArg(env jni.Env, desc, s string) (jni.Value, error) {
	switch desc {
	case "Z":
		b, err := strconv.ParseBool(s)
		return jni.Boolean(b), err
	case "B":
		n, err := strconv.ParseInt(s, 0, 8)
		return jni.Byte(int8(n)), err
	case "C":
		u := utf16.Encode([]rune(s))
		if len(u) != 1 {
			return jni.Value{}, fmt.Errorf("%q is not a single char", s)
		}
		return jni.Char(u[0]), nil
	case "S":
		n, err := strconv.ParseInt(s, 0, 16)
		return jni.Short(int16(n)), err
	case "I":
		n, err := strconv.ParseInt(s, 0, 32)
		return jni.Int(int32(n)), err
	case "J":
		n, err := strconv.ParseInt(s, 0, 64)
		return jni.Long(n), err
	case "F":
		f, err := strconv.ParseFloat(s, 32)
		return jni.Float(float32(f)), err
	case "D":
		f, err := strconv.ParseFloat(s, 64)
		return jni.Double(f), err
	case "Ljava/lang/String;", "Ljava/lang/Object;", "Ljava/lang/CharSequence;":
		r, err := env.NewString(s)
		return jni.ObjectValue(r), err
	}
	return jni.Value{}, fmt.Errorf("cannot pass %s from the command line", desc)
}

// newLogger writes human-readable logs to a terminal and JSON otherwise.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	var enc zapcore.Encoder
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}
