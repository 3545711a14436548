package executor

import (
	"context"
	"strings"
)

// Runner binds one Language to an Executor so it can be driven as a
// single-language runtime: a source string in, output or an error out.
type Runner struct {
	exec *Executor
	lang Language
	opts []Option
}

// Bind returns a Runner for lang. opts apply to every run.
func (e *Executor) Bind(lang Language, opts ...Option) *Runner {
	return &Runner{exec: e, lang: lang, opts: opts}
}

// Run executes source. On success the output is stdout followed by any
// stderr the program wrote; on failure only the error is returned.
func (r *Runner) Run(ctx context.Context, source string) (string, error) {
	result := r.exec.Run(ctx, r.lang, source, r.opts...)
	if result.Error != nil {
		return "", result.Error
	}
	out := result.Output
	if strings.TrimSpace(result.Stderr) != "" {
		out += result.Stderr
	}
	return out, nil
}
