// Package shell provides the shell executor adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new ShellExecutor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// Execute runs the step's command in dir and returns its standard output.
// It merges environments with the following priority (low to high):
// 1. os.Environ() (System base)
// 2. env (Engine provided variables)
// 3. step.Environment (User-defined overrides)
//
// Special handling is applied to PATH: paths from env are prepended to System paths.
//
// Output is also streamed: to the vertex carried by ctx when there is one, to the
// logger otherwise.
func (e *Executor) Execute(ctx context.Context, step *domain.Step, dir string, env []string) ([]byte, error) {
	if len(step.Command) == 0 {
		return nil, nil
	}

	name := step.Command[0]
	args := step.Command[1:]

	cmdEnv := resolveEnvironment(os.Environ(), env, step.Environment)

	// Resolve the executable using the merged environment's PATH.
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // user provided command

	// exec.CommandContext sets Args[0] to the executable path.
	// Preserve the original name as invoked.
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	cmd.Dir = dir
	cmd.Env = cmdEnv

	var stdout bytes.Buffer
	var streamOut, streamErr io.Writer
	var flush func()
	if vertex, ok := ports.VertexFromContext(ctx); ok {
		streamOut, streamErr = vertex.Stdout(), vertex.Stderr()
		flush = func() {}
	} else {
		outLog := &logWriter{logger: e.logger, level: levelInfo}
		errLog := &logWriter{logger: e.logger, level: levelWarn}
		streamOut, streamErr = outLog, errLog
		flush = func() {
			outLog.Flush()
			errLog.Flush()
		}
	}
	cmd.Stdout = io.MultiWriter(&stdout, streamOut)
	cmd.Stderr = streamErr

	err := cmd.Run()
	flush()
	if err != nil {
		exitCode := -1 // Unknown or signal
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
		return nil, zerr.With(wrapped, "step", step.Name.String())
	}

	return stdout.Bytes(), nil
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
)

// logWriter forwards complete lines to the logger and keeps partial lines until
// the rest arrives or Flush is called.
type logWriter struct {
	logger ports.Logger
	level  logLevel

	mu  sync.Mutex
	buf []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(string(w.buf))
		w.buf = nil
	}
}

func (w *logWriter) emit(line string) {
	line = strings.TrimSuffix(line, "\r")
	if w.level == levelInfo {
		w.logger.Info(line)
	} else {
		w.logger.Warn(line)
	}
}

// resolveEnvironment merges environment variables with the defined priority and
// returns them sorted by name.
func resolveEnvironment(sysEnv, extraEnv []string, stepEnv map[string]string) []string {
	// 1. Start with System Environment
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			envMap[k] = v
		}
	}

	// 2. Apply engine provided variables (Prepend PATH)
	for _, entry := range extraEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if sysPath, exists := envMap["PATH"]; k == "PATH" && exists && sysPath != "" {
			envMap[k] = v + string(os.PathListSeparator) + sysPath
		} else {
			envMap[k] = v
		}
	}

	// 3. Apply Step Environment Overrides
	for k, v := range stepEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// lookPath searches for an executable in the directories named by the PATH environment variable.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "PATH="); ok {
			path = after
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
