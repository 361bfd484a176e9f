// Package diagram renders the story graph for authors.
// Supports Mermaid flowchart and ASCII outline formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/quillforge/fable/pkg/story"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a loaded bundle.
func Generate(b *story.Bundle, format Format) (string, error) {
	if b == nil {
		return "", fmt.Errorf("nil bundle")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(b), nil
	case FormatASCII:
		return generateASCII(b), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(b *story.Bundle) string {
	g := newGraph(b)
	var out strings.Builder
	out.WriteString("flowchart TD\n")

	if start, ok := g.start(); ok {
		out.WriteString("    START([Start]) --> " + safeID(start) + "\n")
	}

	// Scenes as subgraphs, passages as nodes.
	for _, sceneID := range b.Story.SceneIDs {
		scene, ok := g.scenes[sceneID]
		if !ok {
			continue
		}
		title := scene.Title
		if title == "" {
			title = scene.ID
		}
		out.WriteString(fmt.Sprintf("    subgraph %s[%q]\n", safeID(scene.ID), title))
		for _, pid := range scene.PassageIDs {
			p, ok := g.passages[pid]
			if !ok {
				continue
			}
			out.WriteString("        " + nodeDefinition(p) + "\n")
		}
		out.WriteString("    end\n")
	}
	// Passages outside any listed scene still get nodes.
	for _, p := range b.Passages {
		if !g.inScene[p.ID] {
			out.WriteString("    " + nodeDefinition(p) + "\n")
		}
	}

	// Edges: one per route, labeled with the choice title (or input
	// prompt) plus a gate summary.
	for _, rt := range b.Routes {
		from, ok := g.routeSource(rt)
		if !ok {
			continue
		}
		to, ok := g.routeTarget(rt)
		if !ok {
			continue
		}
		label := g.edgeLabel(rt)
		if label == "" {
			out.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(from), safeID(to)))
		} else {
			out.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", safeID(from), label, safeID(to)))
		}
	}

	// Terminal passages styled as endings.
	for _, p := range b.Passages {
		if p.Terminal {
			out.WriteString(fmt.Sprintf("    style %s fill:#a33,stroke:#710,color:#fff\n", safeID(p.ID)))
		}
	}
	for _, p := range b.Passages {
		if p.Type == story.PassageInput {
			out.WriteString(fmt.Sprintf("    style %s fill:#1a3a4a,stroke:#0af\n", safeID(p.ID)))
		}
	}

	return out.String()
}

func nodeDefinition(p story.Passage) string {
	id := safeID(p.ID)
	title := p.Title
	if title == "" {
		title = p.ID
	}
	switch {
	case p.Terminal:
		return fmt.Sprintf(`%s(["%s"])`, id, escMermaid(title))
	case p.Type == story.PassageInput:
		return fmt.Sprintf(`%s[/"%s"/]`, id, escMermaid(title))
	default:
		return fmt.Sprintf(`%s["%s"]`, id, escMermaid(title))
	}
}

// --- ASCII outline ---

// generateASCII lists each scene as a titled box followed by its
// passages with their outgoing edges. The graph is cyclic, so this is
// an adjacency outline rather than a top-down flow.
func generateASCII(b *story.Bundle) string {
	g := newGraph(b)
	var out strings.Builder

	name := b.Story.Title
	if name == "" {
		name = "Story"
	}

	width := boxWidth(b, name)
	out.WriteString("╔" + strings.Repeat("═", width) + "╗\n")
	out.WriteString("║" + centerPad(name, width) + "║\n")
	out.WriteString("╚" + strings.Repeat("═", width) + "╝\n")

	writeScene := func(sceneTitle string, passageIDs []string) {
		out.WriteString("\n┌" + strings.Repeat("─", width) + "┐\n")
		out.WriteString("│" + centerPad(sceneTitle, width) + "│\n")
		out.WriteString("└" + strings.Repeat("─", width) + "┘\n")
		for _, pid := range passageIDs {
			p, ok := g.passages[pid]
			if !ok {
				continue
			}
			writeASCIIPassage(&out, g, p)
		}
	}

	for _, sceneID := range b.Story.SceneIDs {
		scene, ok := g.scenes[sceneID]
		if !ok {
			continue
		}
		title := scene.Title
		if title == "" {
			title = scene.ID
		}
		writeScene(title, scene.PassageIDs)
	}

	var orphans []string
	for _, p := range b.Passages {
		if !g.inScene[p.ID] {
			orphans = append(orphans, p.ID)
		}
	}
	if len(orphans) > 0 {
		writeScene("(unscened)", orphans)
	}

	return out.String()
}

func writeASCIIPassage(out *strings.Builder, g *graph, p story.Passage) {
	icon := passageIcon(p)
	title := p.Title
	if title == "" {
		title = p.ID
	}
	out.WriteString(fmt.Sprintf("  %s %s\n", icon, title))

	if p.Type == story.PassageInput {
		if in, ok := g.inputByPassage[p.ID]; ok {
			prompt := "input"
			if v, ok := g.variables[in.VariableID]; ok {
				prompt = "input → " + v.Title
			}
			for _, rt := range g.routesByOrigin[in.ID] {
				writeASCIIEdge(out, g, prompt, rt)
			}
		}
		return
	}
	for _, cid := range p.ChoiceIDs {
		c, ok := g.choices[cid]
		if !ok {
			continue
		}
		label := c.Title
		if label == "" {
			label = c.ID
		}
		routes := g.routesByOrigin[c.ID]
		if len(routes) == 0 {
			out.WriteString(fmt.Sprintf("      %s ─▶ (no route)\n", label))
			continue
		}
		for _, rt := range routes {
			writeASCIIEdge(out, g, label, rt)
		}
	}
	if p.Terminal {
		out.WriteString("      ◼ ending\n")
	}
}

func writeASCIIEdge(out *strings.Builder, g *graph, label string, rt story.Route) {
	target, ok := g.routeTarget(rt)
	if !ok {
		target = rt.DestinationID + "?"
	}
	name := target
	if tp, ok := g.passages[target]; ok && tp.Title != "" {
		name = tp.Title
	}
	gate := g.gateSummary(rt.ID)
	if gate != "" {
		gate = " [" + gate + "]"
	}
	out.WriteString(fmt.Sprintf("      %s ─▶ %s%s\n", label, name, gate))
}

func passageIcon(p story.Passage) string {
	switch {
	case p.Terminal:
		return "◼"
	case p.Type == story.PassageInput:
		return "✎"
	default:
		return "◇"
	}
}

func boxWidth(b *story.Bundle, name string) int {
	w := runewidth.StringWidth(name) + 4
	if w < 24 {
		w = 24
	}
	for _, s := range b.Scenes {
		if sw := runewidth.StringWidth(s.Title) + 4; sw > w {
			w = sw
		}
	}
	return w
}

func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

// --- graph index ---

type graph struct {
	bundle         *story.Bundle
	scenes         map[string]story.Scene
	passages       map[string]story.Passage
	choices        map[string]story.Choice
	inputs         map[string]story.Input
	jumps          map[string]story.Jump
	variables      map[string]story.Variable
	inputByPassage map[string]story.Input
	routesByOrigin map[string][]story.Route
	condsByRoute   map[string][]story.Condition
	inScene        map[string]bool
}

func newGraph(b *story.Bundle) *graph {
	g := &graph{
		bundle:         b,
		scenes:         make(map[string]story.Scene, len(b.Scenes)),
		passages:       make(map[string]story.Passage, len(b.Passages)),
		choices:        make(map[string]story.Choice, len(b.Choices)),
		inputs:         make(map[string]story.Input, len(b.Inputs)),
		jumps:          make(map[string]story.Jump, len(b.Jumps)),
		variables:      make(map[string]story.Variable, len(b.Variables)),
		inputByPassage: make(map[string]story.Input),
		routesByOrigin: make(map[string][]story.Route),
		condsByRoute:   make(map[string][]story.Condition),
		inScene:        make(map[string]bool),
	}
	for _, s := range b.Scenes {
		g.scenes[s.ID] = s
		for _, pid := range s.PassageIDs {
			g.inScene[pid] = true
		}
	}
	for _, p := range b.Passages {
		g.passages[p.ID] = p
	}
	for _, c := range b.Choices {
		g.choices[c.ID] = c
	}
	for _, in := range b.Inputs {
		g.inputs[in.ID] = in
		g.inputByPassage[in.PassageID] = in
	}
	for _, j := range b.Jumps {
		g.jumps[j.ID] = j
	}
	for _, v := range b.Variables {
		g.variables[v.ID] = v
	}
	for _, rt := range b.Routes {
		g.routesByOrigin[rt.OriginID] = append(g.routesByOrigin[rt.OriginID], rt)
	}
	for _, c := range b.Conditions {
		g.condsByRoute[c.RouteID] = append(g.condsByRoute[c.RouteID], c)
	}
	return g
}

// start resolves the passage a fresh playthrough begins at, mirroring
// the runtime's jump-then-first-scene fallback.
func (g *graph) start() (string, bool) {
	if g.bundle.Story.JumpID != "" {
		if j, ok := g.jumps[g.bundle.Story.JumpID]; ok {
			if pid, ok := g.jumpTarget(j); ok {
				return pid, true
			}
		}
	}
	for _, sceneID := range g.bundle.Story.SceneIDs {
		if s, ok := g.scenes[sceneID]; ok && len(s.PassageIDs) > 0 {
			return s.PassageIDs[0], true
		}
	}
	return "", false
}

func (g *graph) jumpTarget(j story.Jump) (string, bool) {
	if j.PassageID != "" {
		return j.PassageID, true
	}
	if s, ok := g.scenes[j.SceneID]; ok && len(s.PassageIDs) > 0 {
		return s.PassageIDs[0], true
	}
	return "", false
}

// routeSource maps a route's origin back to the passage the edge leaves
// from.
func (g *graph) routeSource(rt story.Route) (string, bool) {
	switch rt.OriginType {
	case story.OriginChoice:
		if c, ok := g.choices[rt.OriginID]; ok {
			return c.PassageID, true
		}
	case story.OriginInput:
		if in, ok := g.inputs[rt.OriginID]; ok {
			return in.PassageID, true
		}
	case story.OriginPassage:
		if _, ok := g.passages[rt.OriginID]; ok {
			return rt.OriginID, true
		}
	}
	return "", false
}

// routeTarget resolves a route's destination to a concrete passage id,
// following jump indirection.
func (g *graph) routeTarget(rt story.Route) (string, bool) {
	switch rt.DestinationType {
	case story.DestinationJump:
		if j, ok := g.jumps[rt.DestinationID]; ok {
			return g.jumpTarget(j)
		}
		return "", false
	default:
		_, ok := g.passages[rt.DestinationID]
		return rt.DestinationID, ok
	}
}

func (g *graph) edgeLabel(rt story.Route) string {
	var label string
	switch rt.OriginType {
	case story.OriginChoice:
		if c, ok := g.choices[rt.OriginID]; ok {
			label = c.Title
		}
	case story.OriginInput:
		label = "input"
	}
	if gate := g.gateSummary(rt.ID); gate != "" {
		if label != "" {
			label += " · " + gate
		} else {
			label = gate
		}
	}
	return truncate(label, 40)
}

// gateSummary renders a route's AND-combined conditions compactly.
func (g *graph) gateSummary(routeID string) string {
	conds := g.condsByRoute[routeID]
	if len(conds) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		name := c.VariableID
		if v, ok := g.variables[c.VariableID]; ok && v.Title != "" {
			name = v.Title
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", name, opSymbol(c.Operator), c.Operand))
	}
	return strings.Join(parts, " & ")
}

func opSymbol(op story.ConditionOperator) string {
	switch op {
	case story.OpEQ:
		return "="
	case story.OpNE:
		return "!="
	case story.OpGT:
		return ">"
	case story.OpGTE:
		return ">="
	case story.OpLT:
		return "<"
	case story.OpLTE:
		return "<="
	}
	return string(op)
}

// --- string helpers ---

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
