// Package main provides the fable-tui binary — Bubble Tea story player.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
	"github.com/quillforge/fable/pkg/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: fable-tui <story.json> [--journal path] [--seed n]")
		os.Exit(1)
	}

	filePath := os.Args[1]
	journalPath := ""
	var seed int64

	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--journal" && i+1 < len(os.Args):
			i++
			journalPath = os.Args[i]
		case arg == "--seed" && i+1 < len(os.Args):
			i++
			n, err := strconv.ParseInt(os.Args[i], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid --seed %q\n", os.Args[i])
				os.Exit(1)
			}
			seed = n
		}
	}

	b, errs := story.ValidateFile(filePath)
	if story.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity == "error" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		fmt.Fprintln(os.Stderr, "Validation failed")
		os.Exit(1)
	}

	var store journal.Store
	if journalPath == "" {
		store = journal.NewMemoryStore()
	} else {
		s, err := journal.OpenSQLite(journalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		store = s
	}
	defer store.Close()

	var resolver *runtime.Resolver
	if seed != 0 {
		resolver = runtime.NewResolver(seed)
	} else {
		r, err := runtime.NewRandomResolver()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		resolver = r
	}

	repo := story.NewRepository(b)
	session, err := runtime.NewSession(context.Background(), repo, store, resolver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(tui.Config{Repo: repo, Session: session}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
