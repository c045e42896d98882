package codevalidator

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"
)

// writeTempFile drops code into a scratch file with the right extension so
// external tools (ruff, eslint) can be pointed at a real path. The returned
// cleanup func removes it.
func writeTempFile(code, ext string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "codevalidator-*"+ext)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// runCommand runs name with args and returns combined stdout; a non-zero
// exit is not itself reported as an error since linters use it to signal
// "issues found", not "tool failed".
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if _, ok := err.(*exec.ExitError); ok {
		return out, nil
	}
	return out, err
}

func parseJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
