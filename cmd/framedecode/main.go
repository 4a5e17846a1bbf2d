// framedecode replays captured WebSocket frames through the debug log decoder
// and prints every developer log it finds.
//
// Input is either a frames archive written by devlog_agent (JSONL capture
// records) or, with --raw, one text frame payload per line. Decoded logs go to
// stdout; the run summary and warnings go to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/replay"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var raw, quiet bool
	var logLevel string

	flagSet := pflag.NewFlagSet("framedecode", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&raw, "raw", false, "treat each input line as a text frame payload")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level for stderr (debug, info, warn, error)")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: framedecode [flags] [file]\n\nReads stdin when no file is given.\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	in := stdin
	switch rest := flagSet.Args(); len(rest) {
	case 0:
	case 1:
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	default:
		return fmt.Errorf("expected at most one input file, got %d", len(rest))
	}

	var out debuglog.Output
	if !quiet {
		out = debuglog.NewWriterOutput(stdout)
	}
	handler := debuglog.NewHandler(out, nil, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := replay.Run(ctx, in, handler, raw)
	fmt.Fprintln(stderr, sum)
	return err
}
