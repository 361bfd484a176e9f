package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillforge/fable/pkg/debugger"
	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
)

var (
	journalPath  string
	seedFlag     int64
	artifactsDir string
)

// openSession validates the bundle, opens the journal, and resumes or
// starts a session. The caller owns closing the returned store.
func openSession(ctx context.Context, path string) (story.Repository, *runtime.Session, journal.Store, error) {
	b, errs := story.ValidateFile(path)
	if story.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity == "error" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return nil, nil, nil, fmt.Errorf("story validation failed")
	}

	var store journal.Store
	if journalPath == "" {
		store = journal.NewMemoryStore()
	} else {
		s, err := journal.OpenSQLite(journalPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open journal: %w", err)
		}
		store = s
	}

	var resolver *runtime.Resolver
	if seedFlag != 0 {
		resolver = runtime.NewResolver(seedFlag)
	} else {
		r, err := runtime.NewRandomResolver()
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		resolver = r
	}

	repo := story.NewRepository(b)
	session, err := runtime.NewSession(ctx, repo, store, resolver)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return repo, session, store, nil
}

// --- play ---

var playCmd = &cobra.Command{
	Use:   "play [story.json]",
	Short: "Play a story interactively in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, session, store, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	defer writeArtifacts(ctx, session)

	if session.Resumed() {
		fmt.Printf("↻ resuming %s\n\n", repo.Story().Title)
	} else {
		fmt.Printf("%s\n\n", repo.Story().Title)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		v, err := session.View()
		if err != nil {
			return err
		}

		for _, p := range v.Paragraphs {
			fmt.Printf("%s\n\n", p)
		}

		if v.Ended {
			fmt.Println("◼ The End")
			fmt.Print("(r)estart or (q)uit? ")
			if !scanner.Scan() {
				return nil
			}
			switch strings.TrimSpace(scanner.Text()) {
			case "r", "restart":
				if _, err := session.Restart(ctx); err != nil {
					return err
				}
				fmt.Println()
				continue
			default:
				return nil
			}
		}

		var tr runtime.Transition
		if v.Input != nil {
			prompt := v.Input.VariableTitle
			if prompt == "" {
				prompt = "answer"
			}
			fmt.Printf("  %s: ", prompt)
			if !scanner.Scan() {
				return nil
			}
			raw := strings.TrimSpace(scanner.Text())
			if raw == "q" || raw == "quit" {
				return nil
			}
			tr, err = session.AdvanceByInput(ctx, v.Input.ID, raw)
		} else {
			for i, c := range v.Choices {
				fmt.Printf("  %d. %s\n", i+1, c.Title)
			}
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "q", "quit":
				return nil
			case "b", "back":
				tr, err = session.Loopback(ctx)
				if err == runtime.ErrNoOrigin {
					fmt.Println("  ✗ nothing to go back to")
					fmt.Println()
					continue
				}
			default:
				n, convErr := strconv.Atoi(line)
				if convErr != nil || n < 1 || n > len(v.Choices) {
					fmt.Println("  ✗ pick a number from the list, 'b' to go back, 'q' to quit")
					fmt.Println()
					continue
				}
				tr, err = session.AdvanceByChoice(ctx, v.Choices[n-1].ID)
			}
		}
		if err != nil {
			return err
		}
		if tr.Blocked {
			fmt.Printf("  ✗ %s\n\n", tr.Reason)
			continue
		}
		fmt.Println()
	}
}

// --- xray ---

var xrayCmd = &cobra.Command{
	Use:   "xray [story.json]",
	Short: "Walk a story in the diagnostic REPL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, session, store, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		defer store.Close()
		return debugger.New(repo, session).Run(ctx)
	},
}

// writeArtifacts writes the play manifest when --artifacts is set.
func writeArtifacts(ctx context.Context, session *runtime.Session) {
	if artifactsDir == "" {
		return
	}
	if err := session.WriteManifest(ctx, artifactsDir); err != nil {
		fmt.Fprintf(os.Stderr, "write manifest: %v\n", err)
	}
}
