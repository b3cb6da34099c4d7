package codesign

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations instead of starting processes.
type fakeRunner struct {
	output    string
	outputErr error
	runErr    error

	outputs [][]string
	runs    [][]string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.outputs = append(f.outputs, append([]string{name}, args...))
	return []byte(f.output), f.outputErr
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.runs = append(f.runs, append([]string{name}, args...))
	return f.runErr
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{
			name: "plain words",
			argv: []string{"security", "find-identity", "-v", "-p", "codesigning"},
			want: "security find-identity -v -p codesigning",
		},
		{
			name: "spaces are quoted",
			argv: []string{"codesign", "--deep", "/tmp/My App.app"},
			want: "codesign --deep '/tmp/My App.app'",
		},
		{
			name: "empty argument stays visible",
			argv: []string{"codesign", "--deep", ""},
			want: "codesign --deep ''",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommandLine(tt.argv))
		})
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("output is kept on non-zero exit", func(t *testing.T) {
		r := &ExecRunner{}
		out, err := r.Output(context.Background(), "sh", "-c", "echo listing; exit 3")

		var exitErr *exec.ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 3, exitErr.ExitCode())
		assert.Equal(t, "listing\n", string(out))
	})

	t.Run("run shares the configured streams", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		r := &ExecRunner{Stdout: &stdout, Stderr: &stderr}
		err := r.Run(context.Background(), "sh", "-c", "echo signed; echo warning >&2")

		require.NoError(t, err)
		assert.Equal(t, "signed\n", stdout.String())
		assert.Equal(t, "warning\n", stderr.String())
	})

	t.Run("missing tool is a launch error", func(t *testing.T) {
		r := &ExecRunner{}
		_, err := r.Output(context.Background(), "go-autosign-no-such-tool")

		require.Error(t, err)
		var exitErr *exec.ExitError
		assert.False(t, errors.As(err, &exitErr))
	})
}
