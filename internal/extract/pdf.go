package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// PDF extracts text with poppler's pdftotext.
type PDF struct {
	runner CommandRunner
	tool   string
}

// NewPDF creates a PDF extractor. A nil runner executes real commands.
func NewPDF(runner CommandRunner) *PDF {
	if runner == nil {
		runner = execRunner{}
	}
	return &PDF{runner: runner, tool: "pdftotext"}
}

func (p *PDF) Extract(ctx context.Context, path string) (string, error) {
	bin, err := p.runner.LookPath(p.tool)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, p.tool)
	}

	out, err := p.runner.Run(ctx, bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	// pdftotext separates pages with form feeds
	text := strings.ReplaceAll(string(out), "\f", "\n")
	return strings.ToValidUTF8(text, ""), nil
}
