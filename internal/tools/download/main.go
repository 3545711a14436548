// Command download fetches the Python interpreter module for builds and CI,
// where the full codeserver binary is not available yet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/caffeineduck/codeserver/language/python"
)

func main() {
	url := flag.String("url", python.DefaultURL, "module URL")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: download [-url URL] <output>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	output := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fetched, err := python.Download(ctx, *url, output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if fetched {
		fmt.Fprintf(os.Stderr, "wrote %s\n", output)
	}
}
