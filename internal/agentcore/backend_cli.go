package agentcore

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/aragora-project/aragora-go/internal/sanitize"
)

// CLIBackend adapts a local CLI tool (invoked as a subprocess) to the
// Backend interface. Arguments are passed through exec.Command's argv,
// never shell-concatenated, so CLIArg sanitization only needs to strip
// control characters rather than escape shell metacharacters.
type CLIBackend struct {
	Path string
	Args []string
}

// NewCLIBackend constructs a backend that shells out to path with the
// given fixed leading arguments; the prompt is appended as the final arg.
func NewCLIBackend(path string, args ...string) *CLIBackend {
	return &CLIBackend{Path: path, Args: args}
}

// Generate invokes the CLI tool with prompt appended to the configured
// argument list and returns its stdout, capped at MaxStreamBytes.
func (b *CLIBackend) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	args := make([]string, len(b.Args))
	for i, a := range b.Args {
		args[i] = sanitize.CLIArg(a)
	}
	args = append(args, sanitize.CLIArg(renderHistory(history, prompt)))

	cmd := exec.CommandContext(ctx, b.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &capped{buf: &stdout, limit: MaxStreamBytes}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("cli agent %s failed: %w: %s", b.Path, err, stderr.String())
	}
	return stdout.String(), nil
}

// capped is an io.Writer that silently truncates once limit bytes have
// been written, preventing a runaway subprocess from exhausting memory.
type capped struct {
	buf   *bytes.Buffer
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	return c.buf.Write(p)
}
