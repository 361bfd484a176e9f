package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
)

var scriptPath string

var runCmd = &cobra.Command{
	Use:   "run [story.json]",
	Short: "Replay a scripted playthrough non-interactively",
	Long: `Replay a YAML script of intents against a story and print the transcript.
With a fixed --seed the same script reproduces the same playthrough, which
makes run suitable for regression-checking authored stories.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	script, err := runtime.LoadScript(scriptPath)
	if err != nil {
		return err
	}

	_, session, store, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	defer writeArtifacts(ctx, session)

	v, err := session.View()
	if err != nil {
		return err
	}
	printView(0, v, "")

	results, err := runtime.RunScript(ctx, session, script)
	blocked := 0
	for _, r := range results {
		reason := ""
		if r.Transition.Blocked {
			blocked++
			reason = r.Transition.Reason
		}
		printView(r.Step, r.Transition.View, reason)
	}
	if err != nil {
		return err
	}

	last := session.Current()
	fmt.Printf("── %d step(s), %d blocked, ended=%v ──\n",
		len(results), blocked, last.Type == journal.EventGameOver)
	return nil
}

func printView(step int, v runtime.View, blockedReason string) {
	header := v.Passage.Title
	if header == "" {
		header = v.Passage.ID
	}
	fmt.Printf("[%d] %s\n", step, header)
	if blockedReason != "" {
		fmt.Printf("    ✗ blocked: %s\n\n", blockedReason)
		return
	}
	for _, p := range v.Paragraphs {
		fmt.Printf("    %s\n", strings.ReplaceAll(p, "\n", "\n    "))
	}
	if len(v.Choices) > 0 {
		var titles []string
		for _, c := range v.Choices {
			titles = append(titles, c.Title)
		}
		fmt.Printf("    → %s\n", strings.Join(titles, " | "))
	}
	if v.Ended {
		fmt.Printf("    ◼ The End\n")
	}
	fmt.Println()
}
