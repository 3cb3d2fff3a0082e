package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/diskcache"
	"github.com/calvinalkan/diskcache/internal/cli"
)

func gcCmd(cfg *config) *cli.Command {
	flags := flag.NewFlagSet("gc", flag.ContinueOnError)
	resolve := cacheFlags(flags, cfg)

	return &cli.Command{
		Flags: flags,
		Usage: "gc [flags]",
		Short: "Force eviction and journal compaction",
		Exec: func(_ context.Context, o *cli.IO, _ []string) error {
			dir, maxBytes, maxCount := resolve()

			return withCache(dir, maxBytes, maxCount, func(c *diskcache.Cache) error {
				if err := c.Flush(); err != nil {
					return err
				}

				o.Println(c.String())

				return nil
			})
		},
	}
}
