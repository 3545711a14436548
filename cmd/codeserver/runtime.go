package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/codeserver/language/python"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Manage interpreter modules",
	Long: `Manage the WebAssembly interpreter modules codeserver runs code in.

JavaScript (QuickJS) is built into the binary. Python is a separate WASI
module downloaded once into the cache directory.`,
}

var runtimeFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the Python interpreter module",
	Args:  cobra.NoArgs,
	RunE:  runRuntimeFetch,
}

var runtimeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where interpreter modules are and whether they are installed",
	Args:  cobra.NoArgs,
	RunE:  runRuntimeStatus,
}

func init() {
	runtimeFetchCmd.Flags().String("url", "", "Module URL (default from config)")
	runtimeFetchCmd.Flags().String("dest", "", "Destination path (default from config)")
	runtimeFetchCmd.Flags().Bool("force", false, "Replace an existing module")

	runtimeCmd.AddCommand(runtimeFetchCmd, runtimeStatusCmd)
	rootCmd.AddCommand(runtimeCmd)
}

func runRuntimeFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := cfg.Runtimes.Python.URL
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		url = v
	}
	dest := cfg.Runtimes.Python.Module
	if v, _ := cmd.Flags().GetString("dest"); v != "" {
		dest = v
	}

	if force, _ := cmd.Flags().GetBool("force"); force {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Fetching %s\n", url)
	fetched, err := python.Download(serveContext(cmd), url, dest)
	if err != nil {
		return fmt.Errorf("fetch python: %w", err)
	}
	if !fetched {
		fmt.Fprintf(cmd.OutOrStdout(), "Python already installed at %s (use --force to replace)\n", dest)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Python installed at %s\n", dest)
	return nil
}

func runRuntimeStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ok := color.New(color.FgGreen).SprintFunc()
	missing := color.New(color.FgYellow).SprintFunc()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "javascript  %s  (built in)\n", ok("installed"))
	if info, err := os.Stat(cfg.Runtimes.Python.Module); err == nil {
		fmt.Fprintf(out, "python      %s  %s (%d bytes)\n", ok("installed"), cfg.Runtimes.Python.Module, info.Size())
	} else {
		fmt.Fprintf(out, "python      %s    %s\n", missing("missing"), cfg.Runtimes.Python.Module)
	}
	if cfg.Runtimes.DiskCache {
		fmt.Fprintf(out, "cache       %s\n", cfg.Runtimes.CacheDir)
	} else {
		fmt.Fprintln(out, "cache       disabled")
	}
	return nil
}
