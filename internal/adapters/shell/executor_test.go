package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/rebuild/internal/adapters/shell"
	"go.trai.ch/rebuild/internal/core/domain"
	"go.trai.ch/rebuild/internal/core/ports"
	"go.trai.ch/rebuild/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestExecutor_Execute_CapturesStdout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info("line1").Times(1)
	mockLogger.EXPECT().Info("line2").Times(1)

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-step"),
		Command: []string{"sh", "-c", "echo line1; echo line2"},
	}

	out, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, "line1\nline2\n", string(out))
}

func TestExecutor_Execute_FragmentedOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)

	// The writer buffers until a newline arrives.
	mockLogger.EXPECT().Info("part1part2").Times(1)

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-fragmented"),
		Command: []string{"sh", "-c", "printf part1; sleep 0.1; echo part2"},
	}

	_, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.NoError(t, err)
}

func TestExecutor_Execute_TrailingPartialLine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info("no newline").Times(1)

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-partial"),
		Command: []string{"sh", "-c", "printf 'no newline'"},
	}

	out, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, "no newline", string(out))
}

func TestExecutor_Execute_StderrIsWarned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn("oops").Times(1)

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-stderr"),
		Command: []string{"sh", "-c", "echo oops >&2"},
	}

	out, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestExecutor_Execute_EnvironmentPriority(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-env"),
		Command: []string{"sh", "-c", "echo $ENGINE_VAR-$SHARED_VAR"},
		Environment: map[string]string{
			"SHARED_VAR": "from-step",
		},
	}

	env := []string{"ENGINE_VAR=engine", "SHARED_VAR=from-engine"}
	out, err := executor.Execute(context.Background(), step, t.TempDir(), env)
	require.NoError(t, err)
	require.Equal(t, "engine-from-step\n", string(out))
}

func TestExecutor_Execute_WorkingDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()

	executor := shell.NewExecutor(mockLogger)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("here"), 0o600))

	step := &domain.Step{
		Name:    domain.NewInternedString("test-dir"),
		Command: []string{"cat", "marker"},
	}

	out, err := executor.Execute(context.Background(), step, dir, nil)
	require.NoError(t, err)
	require.Equal(t, "here", string(out))
}

func TestExecutor_Execute_PathLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info("success").Times(1)

	executor := shell.NewExecutor(mockLogger)

	binDir := t.TempDir()
	cmdName := "my-private-tool"
	//nolint:gosec // Test requires executable file
	err := os.WriteFile(filepath.Join(binDir, cmdName), []byte("#!/bin/sh\necho success\n"), 0o700)
	require.NoError(t, err)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-lookup"),
		Command: []string{cmdName},
	}

	_, err = executor.Execute(context.Background(), step, binDir, []string{"PATH=" + binDir})
	require.NoError(t, err)
}

func TestExecutor_Execute_CommandFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-fail"),
		Command: []string{"sh", "-c", "exit 42"},
	}

	_, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "command failed"), "unexpected error: %v", err)
}

func TestExecutor_Execute_InvalidCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-invalid"),
		Command: []string{"nonexistent-command-xyz123"},
	}

	_, err := executor.Execute(context.Background(), step, t.TempDir(), nil)
	require.Error(t, err)
}

func TestExecutor_Execute_EmptyCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	executor := shell.NewExecutor(mocks.NewMockLogger(ctrl))

	out, err := executor.Execute(context.Background(), &domain.Step{}, t.TempDir(), nil)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestExecutor_Execute_WithVertex(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	// Logger shouldn't be used when a Vertex is present
	mockLogger.EXPECT().Info(gomock.Any()).Times(0)
	mockLogger.EXPECT().Warn(gomock.Any()).Times(0)

	mockVertex := mocks.NewMockVertex(ctrl)

	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	mockVertex.EXPECT().Stdout().Return(&stdoutBuf).AnyTimes()
	mockVertex.EXPECT().Stderr().Return(&stderrBuf).AnyTimes()

	executor := shell.NewExecutor(mockLogger)

	step := &domain.Step{
		Name:    domain.NewInternedString("test-vertex"),
		Command: []string{"sh", "-c", "echo hello to stdout; echo hello to stderr >&2"},
	}

	ctx := ports.ContextWithVertex(context.Background(), mockVertex)

	out, err := executor.Execute(ctx, step, t.TempDir(), nil)
	require.NoError(t, err)

	require.Equal(t, "hello to stdout\n", string(out))
	require.Contains(t, stdoutBuf.String(), "hello to stdout")
	require.Contains(t, stderrBuf.String(), "hello to stderr")
}
