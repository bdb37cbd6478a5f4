package docker

import (
	"time"
)

// Config holds the configuration for the docker line counter.
type Config struct {
	// Image must provide git, sh, find and awk. Its entrypoint is replaced.
	Image string
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// WorkSize bounds the tmpfs the clone is written to, e.g. "512m".
	WorkSize string
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig returns limits suitable for counting typical repositories.
func DefaultConfig() Config {
	return Config{
		Image: "alpine/git:latest",
		// 256 MB memory limit
		MemoryLimit: 256 * 1024 * 1024,
		CPULimit:    1,
		WorkSize:    "512m",
		PoolSize:    2,
	}
}

// cloneTimeoutExitCode mirrors the unix timeout command.
const cloneTimeoutExitCode = 124

// defaultRemoveTimeout bounds container cleanup, which runs on a fresh
// context so it still happens after the job's context expired.
const defaultRemoveTimeout = 5 * time.Second
