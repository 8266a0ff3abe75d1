// Package executor performs the side-effecting operations of a staging run:
// network fetches, archive extraction, filesystem moves and process spawns.
// Nothing here retries; callers own retry policy.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/logging"
)

const DefaultFetchTimeout = 10 * time.Minute

// Executor is the boundary between staging logic and the outside world.
type Executor interface {
	Fetch(ctx context.Context, url, dst string) error
	Extract(ctx context.Context, archive, dst string) error
	RemoveAll(path string) error
	Rename(src, dst string) error
	CopyDir(src, dst string) error
	Exists(path string) (bool, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	WriteFile(path string, data []byte) error
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// Local runs operations against the local machine.
type Local struct {
	client *http.Client
	logger *slog.Logger
}

func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		client: &http.Client{Timeout: DefaultFetchTimeout},
		logger: logging.Ensure(logger).With("component", "executor"),
	}
}

// WithHTTPClient replaces the client used by Fetch
func (l *Local) WithHTTPClient(c *http.Client) *Local {
	if c != nil {
		l.client = c
	}
	return l
}

func (l *Local) Fetch(ctx context.Context, url, dst string) error {
	op := "GET " + redactQuery(url)
	l.logger.Debug("fetching", "url", redactQuery(url), "dst", dst)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Execution(op, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return apperr.Execution(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Execution(op, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Execution(op, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return apperr.Execution(op, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperr.Execution(op, err)
	}

	l.logger.Debug("fetched", "dst", dst, "bytes", n)
	return nil
}

func (l *Local) Extract(ctx context.Context, archive, dst string) error {
	op := fmt.Sprintf("extract %s", archive)
	l.logger.Debug("extracting", "archive", archive, "dst", dst)

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return apperr.Execution(op, err)
	}

	var err error
	switch ArchiveFormatOf(archive) {
	case FormatZip:
		err = extractZip(ctx, archive, dst)
	case FormatTarGz:
		err = extractTar(ctx, archive, dst, true)
	case FormatTar:
		err = extractTar(ctx, archive, dst, false)
	default:
		err = ErrUnsupportedArchive
	}
	if err != nil {
		return apperr.Execution(op, err)
	}
	return nil
}

func (l *Local) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return apperr.Execution("remove "+path, err)
	}
	return nil
}

func (l *Local) Rename(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return apperr.Execution(fmt.Sprintf("move %s %s", src, dst), err)
	}
	return nil
}

func (l *Local) CopyDir(src, dst string) error {
	if err := copyTree(src, dst); err != nil {
		return apperr.Execution(fmt.Sprintf("copy %s %s", src, dst), err)
	}
	return nil
}

func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, apperr.Execution("stat "+path, err)
}

func (l *Local) ReadDir(path string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, apperr.Execution("list "+path, err)
	}
	return entries, nil
}

func (l *Local) WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Execution("write "+path, err)
	}
	return nil
}

func (l *Local) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	commandLine := strings.TrimSpace(name + " " + strings.Join(args, " "))
	l.logger.Debug("running", "command", commandLine, "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr != "" {
				err = fmt.Errorf("%w: %s", err, stderr)
			}
		}
		return "", apperr.Execution(commandLine, err)
	}
	return string(output), nil
}

// redactQuery drops the query string, which carries signatures on artifact
// storage URLs.
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
