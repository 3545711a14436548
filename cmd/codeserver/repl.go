package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive prompt; every entry runs as a fresh submission",
	Long: `Start an interactive prompt (Read-Eval-Print Loop).

Each entry is submitted on its own, exactly like a POST /execute, so no
variables survive between entries. Expressions print their value.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringP("lang", "l", "", "Language: python, js (required)")
	replCmd.Flags().String("history", "", "History file path (default: ~/.codeserver_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	historyFile, _ := cmd.Flags().GetString("history")

	kind, err := resolveLanguage(langFlag, "")
	if err != nil {
		return err
	}
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".codeserver_history")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Log.Level = "error"
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	exec, err := newExecutor(cfg, languages(cfg)[kind])
	if err != nil {
		return fmt.Errorf("start %s interpreter: %w", kind.DisplayName(), err)
	}
	defer exec.Close()
	coord := newCoordinator(cfg, exec, logger)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            cmd.OutOrStdout(),
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	errColor := color.New(color.FgRed)
	fmt.Fprintf(cmd.ErrOrStderr(), "codeserver %s REPL (type 'exit' to quit, Ctrl+D to exit)\n", kind.DisplayName())

	var multiLine strings.Builder
	inMultiLine := false
	ctx := serveContext(cmd)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}
		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return nil
		}

		result := coord.Submit(ctx, line, kind, "")
		if result.Output != "" {
			fmt.Fprint(out, result.Output)
			if !strings.HasSuffix(result.Output, "\n") {
				fmt.Fprintln(out)
			}
		}
		if !result.Succeeded {
			errColor.Fprintln(cmd.ErrOrStderr(), result.Error)
		}
	}
}
