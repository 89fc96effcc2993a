package document

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultAntiwordCommand is the converter used for legacy .doc files.
const DefaultAntiwordCommand = "antiword"

// NewAntiwordBackend returns a Backend that converts .doc files by running
// command (a name on PATH or a path to the binary).
func NewAntiwordBackend(command string) Backend {
	if command == "" {
		command = DefaultAntiwordCommand
	}
	return BackendFunc(func(ctx context.Context, path string) (string, error) {
		return runAntiword(ctx, command, path)
	})
}

func runAntiword(ctx context.Context, command, path string) (string, error) {
	bin, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%s is required for .doc files: %w", command, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
