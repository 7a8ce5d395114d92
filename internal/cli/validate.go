package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/missing-person-client/internal/api"
)

// Exit codes by failure kind.
const (
	ExitOK          = 0
	ExitUsage       = 2
	ExitTransport   = 3
	ExitDecode      = 4
	ExitApplication = 5
)

// ResolveFile checks that the path exists and is a regular file, then returns
// the absolute path.
func ResolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", path)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return 1
	}
	switch apiErr.Kind {
	case api.KindTransport:
		return ExitTransport
	case api.KindDecode:
		return ExitDecode
	default:
		return ExitApplication
	}
}
