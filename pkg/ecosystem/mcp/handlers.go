package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quillforge/fable/pkg/diagram"
	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
)

// HandleValidate implements the fable/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	b, errs := story.ValidateFile(path)
	if story.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	warnings := ""
	if n := len(errs); n > 0 {
		warnings = fmt.Sprintf(", %d warning(s)", n)
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d passages, %d routes%s)",
		b.Story.Title, len(b.Passages), len(b.Routes), warnings)), nil
}

// HandleSchema implements the fable/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := story.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleGraph implements the fable/graph MCP tool.
func HandleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}

	b, errs := story.ValidateFile(path)
	if story.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	out, err := diagram.Generate(b, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSimulate implements the fable/simulate MCP tool. It plays the
// story against an in-memory journal, so nothing persists between calls.
func HandleSimulate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	seed := int64(1)
	if raw, ok := args["seed"].(float64); ok {
		seed = int64(raw)
	}

	script, err := parseSteps(args["steps"])
	if err != nil {
		return errorResult(err.Error()), nil
	}

	b, errs := story.ValidateFile(path)
	if story.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	repo := story.NewRepository(b)
	store := journal.NewMemoryStore()
	defer store.Close()

	session, err := runtime.NewSession(ctx, repo, store, runtime.NewResolver(seed))
	if err != nil {
		return errorResult(fmt.Sprintf("start session: %s", err)), nil
	}

	var transcript []map[string]any
	record := func(step int, tr runtime.Transition) {
		entry := map[string]any{
			"step":    step,
			"passage": tr.View.Passage.ID,
			"title":   tr.View.Passage.Title,
			"text":    strings.Join(tr.View.Paragraphs, "\n\n"),
			"ended":   tr.View.Ended,
		}
		if tr.Blocked {
			entry["blocked"] = tr.Reason
		}
		var open []string
		for _, c := range tr.View.Choices {
			open = append(open, c.Title)
		}
		if len(open) > 0 {
			entry["choices"] = open
		}
		transcript = append(transcript, entry)
	}

	v, err := session.View()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	record(0, runtime.Transition{View: v})

	results, err := runtime.RunScript(ctx, session, &runtime.Script{Steps: script})
	for _, r := range results {
		record(r.Step, r.Transition)
	}
	if err != nil {
		transcript = append(transcript, map[string]any{"error": err.Error()})
	}

	final := make(map[string]string)
	for _, val := range session.Snapshot() {
		final[val.Title] = val.Value
	}

	response := map[string]any{
		"story":      b.Story.Title,
		"seed":       seed,
		"transcript": transcript,
		"finalState": final,
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: err != nil,
	}, nil
}

// parseSteps converts the raw MCP argument into script steps. A bare
// string is shorthand for a choose intent.
func parseSteps(raw any) ([]runtime.ScriptStep, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, nil
	}
	steps := make([]runtime.ScriptStep, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			steps = append(steps, runtime.ScriptStep{Choose: v})
		case map[string]any:
			var s runtime.ScriptStep
			if c, ok := v["choose"].(string); ok {
				s.Choose = c
			}
			if in, ok := v["input"].(string); ok {
				s.Input = in
			}
			if lb, ok := v["loopback"].(bool); ok {
				s.Loopback = lb
			}
			if r, ok := v["restart"].(bool); ok {
				s.Restart = r
			}
			if s == (runtime.ScriptStep{}) {
				return nil, fmt.Errorf("step %d: no intent recognized", i+1)
			}
			steps = append(steps, s)
		default:
			return nil, fmt.Errorf("step %d: expected string or object", i+1)
		}
	}
	return steps, nil
}

func formatErrors(errs []*story.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
