package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/diskcache"
	"github.com/calvinalkan/diskcache/internal/cli"
)

func replCmd(cfg *config) *cli.Command {
	flags := flag.NewFlagSet("repl", flag.ContinueOnError)
	resolve := cacheFlags(flags, cfg)

	return &cli.Command{
		Flags: flags,
		Usage: "repl [flags]",
		Short: "Interactive session over a cache directory",
		Exec: func(_ context.Context, o *cli.IO, _ []string) error {
			dir, maxBytes, maxCount := resolve()

			return withCache(dir, maxBytes, maxCount, func(c *diskcache.Cache) error {
				return (&repl{cache: c, dir: dir}).run()
			})
		},
	}
}

// repl is an interactive liner-driven session for poking at a cache
// directory directly, modeled on cmd/sloty's REPL loop: prompt, tab
// completion, and a persisted history file.
type repl struct {
	cache *diskcache.Cache
	dir   string
	liner *liner.State
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".diskcache_demo_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(replHistoryFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("diskcache-demo repl (dir=%s)\n", r.dir)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("diskcache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "rm", "del", "delete":
			r.cmdRemove(args)

		case "ls", "list":
			r.cmdList()

		case "stats":
			r.cmdStats()

		case "gc", "flush":
			r.cmdFlush()

		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	path := replHistoryFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *repl) completer(line string) []string {
	commands := []string{
		"put", "get", "rm", "del", "delete",
		"ls", "list", "stats", "gc", "flush",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)

	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  put <key> <value...>   Write value (joined with spaces) to key
  get <key>              Read and print key's bytes
  rm <key>               Remove key
  ls                     List committed entries
  stats                  Print size and hit-rate stats
  gc                     Force eviction and journal compaction
  help                   Show this help
  exit / quit / q        Exit`)
}

func (r *repl) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: put <key> <value...>")
		return
	}

	key := args[0]
	value := []byte(strings.Join(args[1:], " "))

	w, err := r.cache.Edit(key)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if w == nil {
		fmt.Println("edit declined (stub mode or directory unavailable)")
		return
	}

	defer w.AbortUnlessCommitted()

	if _, err := w.Write(value); err != nil {
		fmt.Println("error:", err)
		return
	}

	ok, err := w.Commit()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if !ok {
		fmt.Println("commit failed")
		return
	}

	fmt.Printf("ok, %d bytes\n", len(value))
}

func (r *repl) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}

	reader, err := r.cache.Get(args[0])
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if reader == nil {
		fmt.Println("(absent)")
		return
	}

	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("%s\n", data)
}

func (r *repl) cmdRemove(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: rm <key>")
		return
	}

	if err := r.cache.Remove(args[0]); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("ok")
}

func (r *repl) cmdList() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".clean") {
			fmt.Println(strings.TrimSuffix(e.Name(), ".clean"))
		}
	}
}

func (r *repl) cmdStats() {
	fmt.Println(r.cache.String())
}

func (r *repl) cmdFlush() {
	if err := r.cache.Flush(); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println("ok")
}
