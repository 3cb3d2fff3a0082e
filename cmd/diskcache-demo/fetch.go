package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/diskcache"
	"github.com/calvinalkan/diskcache/internal/cli"
)

// fetchCmd simulates fetching an expensive-to-produce blob (standing in
// for the HTTP response bodies and rendered thumbnails named in the
// purpose statement) through the cache: a hit reads the cached bytes, a
// miss regenerates them and populates the entry.
func fetchCmd(cfg *config) *cli.Command {
	flags := flag.NewFlagSet("fetch", flag.ContinueOnError)
	resolve := cacheFlags(flags, cfg)

	return &cli.Command{
		Flags: flags,
		Usage: "fetch <key> [flags]",
		Short: "Fetch a key, regenerating it on a cache miss",
		Exec: func(_ context.Context, o *cli.IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one key argument")
			}

			key := args[0]
			dir, maxBytes, maxCount := resolve()

			return withCache(dir, maxBytes, maxCount, func(c *diskcache.Cache) error {
				return fetchOne(o, c, key)
			})
		},
	}
}

func fetchOne(o *cli.IO, c *diskcache.Cache, key string) error {
	r, err := c.Get(key)
	if err != nil {
		return err
	}

	if r != nil {
		defer r.Close()

		n, readErr := io.Copy(io.Discard, r)
		if readErr != nil {
			return readErr
		}

		o.Printf("hit %s (%d bytes)\n", key, n)

		return nil
	}

	payload := syntheticPayload(key)

	w, err := c.Edit(key)
	if err != nil {
		return err
	}

	if w == nil {
		o.Printf("miss %s, but cache declined the edit (stub mode or directory unavailable)\n", key)
		return nil
	}

	defer w.AbortUnlessCommitted()

	if _, err := w.Write(payload); err != nil {
		return err
	}

	ok, err := w.Commit()
	if err != nil {
		return err
	}

	if !ok {
		o.Printf("miss %s, regeneration failed to commit\n", key)
		return nil
	}

	o.Printf("miss %s, regenerated %d bytes\n", key, len(payload))

	return nil
}

// syntheticPayload stands in for the real pipeline's expensive output:
// a UUID header (so repeated runs can tell a synthetic hit from a fresh
// regeneration) followed by a deterministic amount of filler derived
// from key, so the same key always "costs" the same size to produce.
func syntheticPayload(key string) []byte {
	id := uuid.New()

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	size := 64 + int(h.Sum32()%4096)

	payload := make([]byte, 0, size)
	payload = append(payload, []byte(id.String())...)
	payload = append(payload, '\n')

	for len(payload) < size {
		payload = append(payload, key...)
		payload = append(payload, ' ')
	}

	return payload[:size]
}
