// Command diskcache-demo is a small embedder of the diskcache library:
// it simulates fetching expensive-to-produce blobs through a bounded,
// journaled, LRU disk cache, and ships an interactive REPL for poking
// at a cache directory directly.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/diskcache"
	"github.com/calvinalkan/diskcache/internal/cli"
)

const binName = "diskcache-demo"

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(run(os.Stdin, os.Stdout, os.Stderr, os.Args[1:], sigCh))
}

func run(stdin *os.File, out, errOut *os.File, args []string, sigCh <-chan os.Signal) int {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := loadConfig(workDir)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	commands := []*cli.Command{
		fetchCmd(&cfg),
		statsCmd(&cfg),
		gcCmd(&cfg),
		replCmd(&cfg),
	}

	return cli.Run(stdin, out, errOut, binName, commands, args, sigCh)
}

// cacheFlags registers the --dir/--max-bytes/--max-count overrides
// shared by every subcommand and returns a function that resolves the
// effective directory and budgets after flag parsing.
func cacheFlags(flags *flag.FlagSet, cfg *config) func() (string, int64, int64) {
	dir := flags.String("dir", "", "Cache directory (default: "+cfg.Dir+")")
	maxBytes := flags.Int64("max-bytes", 0, "Byte budget (default: config/.diskcache.json value)")
	maxCount := flags.Int64("max-count", 0, "Entry-count budget (default: config/.diskcache.json value)")

	return func() (string, int64, int64) {
		d := cfg.Dir
		if *dir != "" {
			d = *dir
		}

		mb := cfg.MaxBytes
		if *maxBytes != 0 {
			mb = *maxBytes
		}

		mc := cfg.MaxCount
		if *maxCount != 0 {
			mc = *maxCount
		}

		return d, mb, mc
	}
}

// withCache opens a cache over dir with a fresh background serial
// executor for journal writes, runs fn, then closes the cache and
// shuts the executor down, regardless of fn's outcome.
func withCache(dir string, maxBytes, maxCount int64, fn func(*diskcache.Cache) error) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	executor := diskcache.NewSerialExecutor()

	c, err := diskcache.Open(abs, maxBytes, maxCount, executor)
	if err != nil {
		_ = executor.Close()
		return err
	}

	fnErr := fn(c)

	closeErr := c.Close()
	execErr := executor.Close()

	if fnErr != nil {
		return fnErr
	}

	if closeErr != nil {
		return closeErr
	}

	return execErr
}
