// Package debugger implements the interactive XRAY REPL for walking a
// story with full diagnostic visibility: state snapshots, route gates,
// and verbose expression failures.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
)

// Debugger provides an interactive REPL over a playback session.
type Debugger struct {
	repo    story.Repository
	session *runtime.Session
	output  io.Writer
	rl      *readline.Instance
}

// New creates a debugger over an open session.
func New(repo story.Repository, session *runtime.Session) *Debugger {
	return &Debugger{
		repo:    repo,
		session: session,
		output:  os.Stdout,
	}
}

// Session returns the underlying session for external configuration.
func (d *Debugger) Session() *runtime.Session {
	return d.session
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	commands := []string{"look", "choices", "choose", "input", "routes",
		"state", "back", "restart", "history", "verbose", "dump", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	meta := d.repo.Story()
	fmt.Fprintf(d.output, "fable xray — %s\n", meta.Title)
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'look' to render the current passage.\n\n")
	d.handleLook(false)

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "look", "l":
			d.handleLook(true)
		case "choices":
			d.handleChoices()
		case "choose", "c":
			if err := d.handleChoose(ctx, parts); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "input", "i":
			if err := d.handleInput(ctx, line); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "routes":
			d.handleRoutes()
		case "state", "s":
			d.handleState()
		case "back", "b":
			if err := d.handleBack(ctx); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "restart":
			if err := d.handleRestart(ctx); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "history", "h":
			d.handleHistory(ctx, parts)
		case "verbose":
			d.handleVerbose(parts)
		case "dump":
			d.handleDump()
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintf(d.output, "Exiting xray.\n")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
		}
	}
}

// buildPrompt creates the prompt string: xray[passage_title]>
func (d *Debugger) buildPrompt() string {
	cur := d.session.Current()
	p, err := d.repo.Passage(cur.PassageID)
	if err != nil {
		return "xray> "
	}
	label := p.Title
	if label == "" {
		label = p.ID
	}
	return fmt.Sprintf("xray[%s]> ", label)
}
