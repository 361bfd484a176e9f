package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillforge/fable/pkg/diagram"
	"github.com/quillforge/fable/pkg/story"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fable",
	Short: "Interactive fiction playback engine",
	Long:  "fable — plays authored story bundles: branching passages, gated routes, typed variables, and a persistent play journal.",
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(xrayCmd)
	rootCmd.AddCommand(versionCmd)

	graphCmd.Flags().StringVar(&graphFormat, "format", "mermaid", "diagram format: mermaid or ascii")

	playCmd.Flags().StringVar(&journalPath, "journal", "", "path to the SQLite play journal (default: in-memory)")
	playCmd.Flags().Int64Var(&seedFlag, "seed", 0, "random seed for multi-route tie-breaking (0 = random)")
	playCmd.Flags().StringVar(&artifactsDir, "artifacts", "", "directory to write the play manifest into on exit")

	runCmd.Flags().StringVar(&scriptPath, "script", "", "YAML script of intents to replay (required)")
	runCmd.Flags().StringVar(&journalPath, "journal", "", "path to the SQLite play journal (default: in-memory)")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 1, "random seed for multi-route tie-breaking")
	runCmd.Flags().StringVar(&artifactsDir, "artifacts", "", "directory to write the play manifest into on exit")
	_ = runCmd.MarkFlagRequired("script")

	xrayCmd.Flags().StringVar(&journalPath, "journal", "", "path to the SQLite play journal (default: in-memory)")
	xrayCmd.Flags().Int64Var(&seedFlag, "seed", 0, "random seed for multi-route tie-breaking (0 = random)")
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [story.json]",
	Short: "Validate a story bundle against the schema and domain rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	b, errs := story.ValidateFile(args[0])
	if len(errs) > 0 {
		var errors []*story.ValidationError
		var warnings []*story.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				errors = append(errors, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
			for i, e := range errors {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("validation failed with %d error(s)", len(errors))
		}
	}
	fmt.Printf("✓ %s is valid (%d passages, %d routes)\n", b.Story.Title, len(b.Passages), len(b.Routes))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the story bundle JSON Schema to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := story.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- graph ---

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph [story.json]",
	Short: "Render the story graph as a Mermaid flowchart or ASCII outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, errs := story.ValidateFile(args[0])
		if story.HasErrors(errs) {
			return fmt.Errorf("bundle is not valid — run 'fable validate %s' for details", args[0])
		}
		out, err := diagram.Generate(b, diagram.Format(graphFormat))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fable %s (%s)\n", version, commit)
	},
}
