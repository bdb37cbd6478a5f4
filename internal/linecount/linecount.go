// Package linecount clones a repository and counts the lines in its files.
//
// The clone-and-count step sits behind the Counter interface so the server can
// run it on the host (Local) or inside a throwaway container (docker
// subpackage). Runner bounds how many counts run at once and for how long.
package linecount

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Source identifies what to clone. Token is optional and only needed for
// private repositories.
type Source struct {
	CloneURL string
	Token    string
}

// Counter clones src and returns the total line count of its working tree.
type Counter interface {
	Count(ctx context.Context, src Source) (int64, error)
}

// Failure reasons the service maps to client messages.
var (
	ErrClone = errors.New("linecount: clone failed")
	ErrCount = errors.New("linecount: count failed")
)

// GitAuthEnv returns environment variables that make git send token as HTTP
// basic auth on every request. Passing it through GIT_CONFIG_* keeps the
// token out of the command line, where other local users could read it.
// Returns nil for an empty token.
func GitAuthEnv(token string) []string {
	if token == "" {
		return nil
	}
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic " + basic,
	}
}

// CountDir walks root and sums the lines of every regular file, skipping
// .git directories and symlinks. A final line without a trailing newline
// still counts.
func CountDir(ctx context.Context, root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		n, err := countFile(path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCount, err)
	}
	return total, nil
}

func countFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return countLines(f)
}

func countLines(r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)

	var (
		lines int64
		last  byte
		seen  bool
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
			seen = true
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if seen && last != '\n' {
		lines++
	}
	return lines, nil
}

// ParseCount reads the decimal total printed by a counting script.
func ParseCount(out []byte) (int64, error) {
	n, err := strconv.ParseInt(string(bytes.TrimSpace(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected output %q", ErrCount, truncate(out, 200))
	}
	return n, nil
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
