package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rburdet/cars/config"
	"github.com/rburdet/cars/store"
)

// runResults handles `cars results`.
func runResults(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print as JSON")
	fs.Parse(args)

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	keys, err := st.List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list results: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		printJSON(map[string]any{"keys": keys, "total": len(keys)})
		return
	}
	if len(keys) == 0 {
		fmt.Println("No results stored.")
		return
	}
	for _, key := range keys {
		fmt.Println(key)
	}
}

// runShow handles `cars show <brand> <model>`.
func runShow(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print as JSON")
	limit := fs.Int("limit", 0, "show at most this many cars (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: usage: cars show [flags] <brand> <model>")
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	result, err := st.Get(context.Background(), store.Key(fs.Arg(0), fs.Arg(1)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read result: %v\n", err)
		os.Exit(1)
	}
	if result == nil {
		fmt.Fprintf(os.Stderr, "No results stored for %s/%s\n", fs.Arg(0), fs.Arg(1))
		os.Exit(1)
	}

	if *asJSON {
		printJSON(result)
		return
	}
	printResult(result, *limit)
}
