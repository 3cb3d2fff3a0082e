package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/diskcache"
	"github.com/calvinalkan/diskcache/internal/cli"
)

func statsCmd(cfg *config) *cli.Command {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	resolve := cacheFlags(flags, cfg)

	return &cli.Command{
		Flags: flags,
		Usage: "stats [flags]",
		Short: "Print cache size and hit-rate stats",
		Exec: func(_ context.Context, o *cli.IO, _ []string) error {
			dir, maxBytes, maxCount := resolve()

			return withCache(dir, maxBytes, maxCount, func(c *diskcache.Cache) error {
				o.Println(c.String())
				o.Printf("entries: %d / %d\n", c.Len(), c.MaxCount())

				return nil
			})
		},
	}
}
