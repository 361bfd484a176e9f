package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/state"
	"github.com/quillforge/fable/pkg/story"
)

// handleLook renders the current passage and what the player can do.
func (d *Debugger) handleLook(header bool) {
	v, err := d.session.View()
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	if header {
		fmt.Fprintf(d.output, "── %s [%s] ──\n", v.Passage.Title, v.Passage.ID)
	}
	for _, p := range v.Paragraphs {
		fmt.Fprintf(d.output, "%s\n\n", p)
	}
	switch {
	case v.Ended:
		fmt.Fprintf(d.output, "  ◼ The story has ended here. 'restart' begins again.\n")
	case v.Input != nil:
		fmt.Fprintf(d.output, "  ✎ awaiting input → %s (%s)\n", v.Input.VariableTitle, v.Input.Type)
	default:
		for i, c := range v.Choices {
			fmt.Fprintf(d.output, "  %d. %s\n", i+1, c.Title)
		}
	}
}

// handleChoices lists every authored choice on the current passage,
// including closed ones, with their gate status.
func (d *Debugger) handleChoices() {
	cur := d.session.Current()
	choices := d.repo.ChoicesForPassage(cur.PassageID)
	if len(choices) == 0 {
		fmt.Fprintf(d.output, "No choices on this passage.\n")
		return
	}
	open := make(map[string]bool)
	if v, err := d.session.View(); err == nil {
		for _, c := range v.Choices {
			open[c.ID] = true
		}
	}
	for i, c := range choices {
		mark := "✗ closed"
		if open[c.ID] {
			mark = "✓ open"
		}
		fmt.Fprintf(d.output, "  %d. %s [%s] — %s\n", i+1, c.Title, c.ID, mark)
	}
}

// handleChoose takes a choice by 1-based index or by id.
func (d *Debugger) handleChoose(ctx context.Context, parts []string) error {
	if len(parts) < 2 {
		fmt.Fprintf(d.output, "Usage: choose <number|choice-id>\n")
		return nil
	}
	v, err := d.session.View()
	if err != nil {
		return err
	}
	arg := parts[1]
	choiceID := arg
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(v.Choices) {
			fmt.Fprintf(d.output, "No open choice %d (have %d).\n", n, len(v.Choices))
			return nil
		}
		choiceID = v.Choices[n-1].ID
	}
	tr, err := d.session.AdvanceByChoice(ctx, choiceID)
	if err != nil {
		return err
	}
	d.report(tr)
	return nil
}

// handleInput submits the remainder of the line as the response value.
func (d *Debugger) handleInput(ctx context.Context, line string) error {
	var raw string
	if fields := strings.SplitN(line, " ", 2); len(fields) == 2 {
		raw = strings.TrimSpace(fields[1])
	}
	if raw == "" {
		fmt.Fprintf(d.output, "Usage: input <value>\n")
		return nil
	}
	v, err := d.session.View()
	if err != nil {
		return err
	}
	if v.Input == nil {
		fmt.Fprintf(d.output, "Current passage takes no input.\n")
		return nil
	}
	tr, err := d.session.AdvanceByInput(ctx, v.Input.ID, raw)
	if err != nil {
		return err
	}
	d.report(tr)
	return nil
}

// handleRoutes dumps every route leaving the current decision points
// with its gate clauses and their evaluation against the snapshot.
func (d *Debugger) handleRoutes() {
	cur := d.session.Current()
	p, err := d.repo.Passage(cur.PassageID)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}

	var origins []string
	if p.Type == story.PassageInput {
		if in, ok := d.repo.InputForPassage(p.ID); ok {
			origins = append(origins, in.ID)
		}
	} else {
		for _, c := range d.repo.ChoicesForPassage(p.ID) {
			origins = append(origins, c.ID)
		}
	}

	for _, origin := range origins {
		routes := d.repo.RoutesFromOrigin(origin)
		fmt.Fprintf(d.output, "origin %s: %d route(s)\n", origin, len(routes))
		for _, rt := range routes {
			ids := []string{rt.ID}
			conds := d.repo.ConditionsForRoutes(ids)[rt.ID]
			ok, err := state.Open(conds, cur.State)
			status := "open"
			if err != nil {
				status = fmt.Sprintf("error: %v", err)
			} else if !ok {
				status = "closed"
			}
			fmt.Fprintf(d.output, "  %s → %s/%s — %s\n", rt.ID, rt.DestinationType, rt.DestinationID, status)
			for _, c := range conds {
				fmt.Fprintf(d.output, "      %s %s %q\n", c.VariableID, c.Operator, c.Operand)
			}
		}
	}
}

// handleState prints the current snapshot, sorted by variable title.
func (d *Debugger) handleState() {
	snap := d.session.Snapshot()
	if len(snap) == 0 {
		fmt.Fprintf(d.output, "No variables defined.\n")
		return
	}
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return snap[ids[i]].Title < snap[ids[j]].Title })
	for _, id := range ids {
		v := snap[id]
		fmt.Fprintf(d.output, "  %s (%s) = %q\n", v.Title, v.Type, v.Value)
	}
}

// handleBack loops back to the decision point behind the current event.
func (d *Debugger) handleBack(ctx context.Context) error {
	tr, err := d.session.Loopback(ctx)
	if err != nil {
		return err
	}
	d.report(tr)
	return nil
}

// handleRestart begins a fresh playthrough.
func (d *Debugger) handleRestart(ctx context.Context) error {
	tr, err := d.session.Restart(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.output, "Restarted.\n\n")
	d.report(tr)
	return nil
}

// handleHistory shows recent events, newest first.
func (d *Debugger) handleHistory(ctx context.Context, parts []string) {
	limit := 10
	if len(parts) > 1 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := d.session.History(ctx, limit)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	for _, ev := range events {
		result := ev.Result
		if result != "" {
			result = " → " + result
		}
		fmt.Fprintf(d.output, "  %s  %-16s %s%s\n",
			ev.UpdatedAt.Format("15:04:05"), ev.Type, ev.PassageID, result)
	}
}

// handleVerbose toggles diagnostic expression rendering.
func (d *Debugger) handleVerbose(parts []string) {
	if len(parts) < 2 {
		mode := "off"
		if d.session.VerboseExpressions() {
			mode = "on"
		}
		fmt.Fprintf(d.output, "verbose is %s. Usage: verbose on|off\n", mode)
		return
	}
	switch parts[1] {
	case "on":
		d.session.SetVerboseExpressions(true)
		fmt.Fprintf(d.output, "Expression failures will show their cause.\n")
	case "off":
		d.session.SetVerboseExpressions(false)
		fmt.Fprintf(d.output, "Expression failures collapse to the error marker.\n")
	default:
		fmt.Fprintf(d.output, "Usage: verbose on|off\n")
	}
}

// handleDump outputs the current event as JSON.
func (d *Debugger) handleDump() {
	cur := d.session.Current()
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "  Error marshaling event: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

// report prints the outcome of a transition attempt.
func (d *Debugger) report(tr runtime.Transition) {
	if tr.Blocked {
		fmt.Fprintf(d.output, "  ✗ blocked: %s\n", tr.Reason)
		return
	}
	if tr.View.Event.Type == journal.EventGameOver {
		fmt.Fprintf(d.output, "  ◼ game over\n")
	}
	fmt.Fprintln(d.output)
	d.handleLook(true)
}

// handleHelp displays available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  look (l)         Render the current passage")
	fmt.Fprintln(d.output, "  choices          List all choices with gate status")
	fmt.Fprintln(d.output, "  choose (c)       Take a choice: choose <number|id>")
	fmt.Fprintln(d.output, "  input (i)        Submit a response: input <value>")
	fmt.Fprintln(d.output, "  routes           Show routes and gate evaluation")
	fmt.Fprintln(d.output, "  state (s)        Show the current state snapshot")
	fmt.Fprintln(d.output, "  back (b)         Loop back to the previous decision point")
	fmt.Fprintln(d.output, "  restart          Begin a fresh playthrough")
	fmt.Fprintln(d.output, "  history (h)      Show recent events: history [n]")
	fmt.Fprintln(d.output, "  verbose          Toggle expression diagnostics: verbose on|off")
	fmt.Fprintln(d.output, "  dump             Output the current event as JSON")
	fmt.Fprintln(d.output, "  help (?)         Show this help")
	fmt.Fprintln(d.output, "  quit (q)         Exit xray")
}
