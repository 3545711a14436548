package executor

import (
	"strconv"
	"strings"
	"time"
)

// Option configures execution behavior.
type Option func(*runConfig)

type runConfig struct {
	timeout   time.Duration
	maxOutput int
	env       map[string]string
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxOutput: DefaultMaxOutput,
	}
}

// DefaultMaxOutput caps captured stdout and stderr per stream.
const DefaultMaxOutput = 1 << 20

// WithTimeout sets the maximum execution time. Zero means the caller's
// context is the only deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithMaxOutput caps how many bytes of stdout and stderr are kept.
// Zero disables the cap.
func WithMaxOutput(n int) Option {
	return func(c *runConfig) {
		c.maxOutput = n
	}
}

// WithEnv sets an environment variable visible to the guest.
func WithEnv(key, value string) Option {
	return func(c *runConfig) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Language // Languages to precompile at startup
	memoryLimitPages uint32     // Max memory pages (each page = 64KB), 0 = default (4GB)
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{}
}

// WithDiskCache enables a persistent compilation cache so interpreters are
// not recompiled on every start. Optionally provide a custom directory;
// otherwise DefaultCacheDir is used.
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the specified languages at Executor creation time.
// This moves the compilation cost to startup rather than first execution.
func WithPrecompile(langs ...Language) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = append(c.precompile, langs...)
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

const (
	pageSize = 64 << 10
	maxPages = 65536
)

// ParseMemoryLimit converts a size such as "64mb", "512MB" or "2gb" to wasm
// pages, rounding up to a whole page. Unknown, zero or over-4GB values
// return 0, which leaves the runtime default in place.
func ParseMemoryLimit(s string) uint32 {
	s = strings.ToLower(strings.TrimSpace(s))
	var unit uint64
	switch {
	case strings.HasSuffix(s, "kb"):
		unit = 1 << 10
	case strings.HasSuffix(s, "mb"):
		unit = 1 << 20
	case strings.HasSuffix(s, "gb"):
		unit = 1 << 30
	default:
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s[:len(s)-2]), 10, 32)
	if err != nil || n == 0 {
		return 0
	}
	pages := (n*unit + pageSize - 1) / pageSize
	if pages > maxPages {
		return 0
	}
	return uint32(pages)
}
