package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run code locally through the same sandbox the server uses",
	Long: `Execute Python or JavaScript code once and print its output.

Code can be provided via:
  - File argument: codeserver run script.py
  - Inline flag: codeserver run -l python -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | codeserver run -l python

The language is detected from the file extension unless --lang is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	runCmd.Flags().StringP("lang", "l", "", "Language: python, js (default: from file extension)")
	runCmd.Flags().Duration("timeout", 0, "Execution timeout (default from config, 30s)")
	rootCmd.AddCommand(runCmd)
}

func readSource(cmd *cobra.Command, args []string) (source, filename string, err error) {
	if code, _ := cmd.Flags().GetString("code"); code != "" {
		return code, "", nil
	}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), "", nil
}

func runRun(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if source == "" {
		return cmd.Help()
	}

	langFlag, _ := cmd.Flags().GetString("lang")
	kind, err := resolveLanguage(langFlag, filename)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Execution.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	// Lifecycle logs would interleave with program output.
	cfg.Log.Level = "error"
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	exec, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer exec.Close()

	ctx, stop := signal.NotifyContext(serveContext(cmd), os.Interrupt)
	defer stop()

	result := newCoordinator(cfg, exec, logger).Submit(ctx, source, kind, "")
	fmt.Fprint(cmd.OutOrStdout(), result.Output)
	if !result.Succeeded {
		return errors.New(result.Error)
	}
	return nil
}
