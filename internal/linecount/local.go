package linecount

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Local clones with the host's git binary into a fresh temporary directory
// and counts the checkout in-process. The directory is removed afterwards
// whether the count succeeded or not.
type Local struct {
	gitPath string
	tmpRoot string // "" means os.TempDir()
	logger  *slog.Logger
}

// NewLocal fails when git is not on PATH.
func NewLocal(logger *slog.Logger) (*Local, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("linecount: git not found: %w", err)
	}
	return &Local{gitPath: gitPath, logger: logger}, nil
}

func (l *Local) Count(ctx context.Context, src Source) (int64, error) {
	start := time.Now()

	dir, err := os.MkdirTemp(l.tmpRoot, "linecount-*")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp dir: %w", ErrClone, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.logger.Error("failed to remove clone dir", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}()

	cmd := exec.CommandContext(ctx, l.gitPath, "clone", "--depth=1", "--quiet", "--", src.CloneURL, dir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, GitAuthEnv(src.Token)...)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", ErrClone, ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w: %s", ErrClone, err, truncate(out, 500))
	}

	total, err := CountDir(ctx, dir)
	if err != nil {
		return 0, err
	}

	l.logger.Debug("counted lines",
		slog.String("url", src.CloneURL),
		slog.Int64("lines", total),
		slog.Duration("duration", time.Since(start)),
	)
	return total, nil
}
