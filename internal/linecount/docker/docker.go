// Package docker implements linecount.Counter by running git inside a
// throwaway container, so an untrusted repository is never checked out on the
// host filesystem.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/repo-dashboard/internal/linecount"
)

const workDir = "/work"

// countScript clones $REPO_URL and prints one number: the line total of every
// regular file outside .git. awk counts a final unterminated line, matching
// linecount.CountDir. Exit status 3 marks a clone failure.
const countScript = `set -e
git clone --depth=1 --quiet -- "$REPO_URL" "$HOME/repo" || exit 3
cd "$HOME/repo"
find . -path ./.git -prune -o -type f -exec awk 'END { print NR }' {} + | awk '{ s += $1 } END { print s + 0 }'
`

const cloneFailedExitCode = 3

var _ linecount.Counter = (*Counter)(nil)

// Counter runs each count in a pre-warmed container from its Pool.
type Counter struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the docker daemon from the environment, pulls the image
// and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Counter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("linecount/docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("linecount/docker: pulling image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete.
	io.Copy(io.Discard, reader)
	logger.Info("docker image is ready")

	c := &Counter{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	c.pool.Start()
	return c, nil
}

// Close stops the pool and closes the docker client.
func (c *Counter) Close() error {
	c.pool.Stop()
	return c.cli.Close()
}

// Count implements linecount.Counter. ctx bounds the whole operation; the
// container is removed afterwards on a separate context.
func (c *Counter) Count(ctx context.Context, src linecount.Source) (int64, error) {
	containerID, err := c.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: waiting for container: %w", linecount.ErrClone, err)
	}
	defer c.pool.removeContainer(containerID)

	env := append([]string{"REPO_URL=" + src.CloneURL, "GIT_TERMINAL_PROMPT=0"}, linecount.GitAuthEnv(src.Token)...)
	execResp, err := c.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Env:          env,
		WorkingDir:   workDir,
		Cmd:          []string{"sh", "-c", countScript},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: creating exec: %w", linecount.ErrClone, err)
	}

	attachResp, err := c.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: attaching to exec: %w", linecount.ErrClone, err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	exitCode := 0
	select {
	case <-done:
		inspect, err := c.cli.ContainerExecInspect(context.WithoutCancel(ctx), execResp.ID)
		if err != nil {
			return 0, fmt.Errorf("%w: inspecting exec: %w", linecount.ErrCount, err)
		}
		exitCode = inspect.ExitCode
	case <-ctx.Done():
		exitCode = cloneTimeoutExitCode
	}

	switch exitCode {
	case 0:
		return linecount.ParseCount(stdout.Bytes())
	case cloneFailedExitCode:
		return 0, fmt.Errorf("%w: %s", linecount.ErrClone, bytes.TrimSpace(stderr.Bytes()))
	case cloneTimeoutExitCode:
		return 0, fmt.Errorf("%w: %w", linecount.ErrClone, ctx.Err())
	default:
		return 0, fmt.Errorf("%w: exit code %d: %s", linecount.ErrCount, exitCode, bytes.TrimSpace(stderr.Bytes()))
	}
}
