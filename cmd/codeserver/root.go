package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caffeineduck/codeserver/coordinator"
	"github.com/caffeineduck/codeserver/executor"
	"github.com/caffeineduck/codeserver/internal/config"
	"github.com/caffeineduck/codeserver/internal/logging"
	"github.com/caffeineduck/codeserver/language"
	"github.com/caffeineduck/codeserver/language/javascript"
	"github.com/caffeineduck/codeserver/language/python"
)

var rootCmd = &cobra.Command{
	Use:   "codeserver",
	Short: "Remote code execution server for Python and JavaScript",
	Long: `codeserver - Run Python and JavaScript snippets over HTTP.

Submitted code runs inside a WebAssembly interpreter with no access to the
filesystem or network. Running executions can be listed and cancelled.

Start the server with 'codeserver serve', or run code locally with
'codeserver run'. The Python interpreter is fetched once with
'codeserver runtime fetch'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var errorPrefix = color.New(color.FgRed, color.Bold).SprintFunc()

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorPrefix("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./codeserver.yaml or ~/.codeserver/codeserver.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Runtimes.DiskCache = false
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// newExecutor builds the shared WASM executor from cfg, precompiling langs.
func newExecutor(cfg *config.Config, precompile ...executor.Language) (*executor.Executor, error) {
	var opts []executor.ExecutorOption
	if cfg.Runtimes.DiskCache {
		opts = append(opts, executor.WithDiskCache(cfg.Runtimes.CacheDir))
	}
	if pages := cfg.MemoryLimitPages(); pages > 0 {
		opts = append(opts, executor.WithMemoryLimit(pages))
	}
	if len(precompile) > 0 {
		opts = append(opts, executor.WithPrecompile(precompile...))
	}
	return executor.New(opts...)
}

// languages returns the interpreter for every supported kind.
func languages(cfg *config.Config) map[language.Kind]executor.Language {
	return map[language.Kind]executor.Language{
		language.Python:     python.New(cfg.Runtimes.Python.Module),
		language.JavaScript: javascript.New(),
	}
}

// newCoordinator wires each language through exec into a coordinator.
func newCoordinator(cfg *config.Config, exec *executor.Executor, logger *zap.Logger) *coordinator.Coordinator {
	runtimes := make(map[language.Kind]coordinator.Runtime)
	for kind, lang := range languages(cfg) {
		var opts []executor.Option
		if kind == language.Python {
			opts = append(opts, executor.WithEnv("PYTHONIOENCODING", "utf-8"))
		}
		runtimes[kind] = exec.Bind(lang, opts...)
	}
	return coordinator.New(runtimes,
		coordinator.WithTimeout(cfg.Execution.Timeout),
		coordinator.WithLogger(logger),
	)
}

// resolveLanguage picks the language from the flag, then the file extension.
func resolveLanguage(langFlag, filename string) (language.Kind, error) {
	if langFlag != "" {
		return language.Parse(langFlag)
	}
	if filename != "" {
		if kind, ok := language.FromFilename(filename); ok {
			return kind, nil
		}
		return language.Unknown, fmt.Errorf("cannot detect language of %s: use --lang python or --lang js", filepath.Base(filename))
	}
	return language.Unknown, fmt.Errorf("language required: use --lang python or --lang js")
}

func pythonAvailable(cfg *config.Config) bool {
	_, err := os.Stat(cfg.Runtimes.Python.Module)
	return err == nil
}
