// Package expression renders templated passage text: plain-text spans
// are preserved verbatim and {expression} spans are evaluated against a
// state snapshot using expr-lang. Rendering is a pure function of
// (template, snapshot): identical inputs always produce byte-identical
// output, so snapshot tests of narrative content stay deterministic.
package expression

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/quillforge/fable/pkg/state"
	"github.com/quillforge/fable/pkg/story"
)

// ErrorMarker is substituted for a span whose expression fails to parse
// or evaluate. Only the failing span degrades; the rest of the paragraph
// and the session are untouched.
const ErrorMarker = "[error]"

// identRe matches variable titles that can be exposed directly as
// expression identifiers. Titles outside this shape stay reachable
// through the v("Title") helper.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Render substitutes every {expression} span in the template and returns
// the result. Plain text and span order are preserved verbatim.
func Render(template string, snap state.Snapshot) string {
	return render(template, snap, false)
}

// RenderVerbose behaves like Render but error markers carry the
// underlying evaluation error, for the XRAY debug channel.
func RenderVerbose(template string, snap state.Snapshot) string {
	return render(template, snap, true)
}

// Paragraphs renders the template and splits the result into paragraphs
// on blank lines, dropping empty ones.
func Paragraphs(template string, snap state.Snapshot) []string {
	rendered := render(template, snap, false)
	var out []string
	for _, p := range strings.Split(rendered, "\n\n") {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func render(template string, snap state.Snapshot, verbose bool) string {
	if !strings.Contains(template, "{") {
		return template
	}

	env := buildEnv(snap)
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			// Unterminated span: keep the remainder as literal text.
			b.WriteString(rest)
			return b.String()
		}
		close += open

		b.WriteString(rest[:open])
		src := rest[open+1 : close]
		b.WriteString(evalSpan(src, env, verbose))
		rest = rest[close+1:]
	}
}

// evalSpan compiles and runs one expression span, formatting the result
// or degrading to the error marker.
func evalSpan(src string, env map[string]interface{}, verbose bool) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return spanError(fmt.Errorf("empty expression"), verbose)
	}

	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return spanError(err, verbose)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return spanError(err, verbose)
	}
	return formatResult(out)
}

func spanError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("[error: %v]", err)
	}
	return ErrorMarker
}

// buildEnv maps variable titles to coerced values for expression
// evaluation, plus the built-in helper functions. Helpers are pure and
// operate only on the supplied state.
func buildEnv(snap state.Snapshot) map[string]interface{} {
	// Walk variables in sorted id order so that when two variables share
	// a title, the same one wins on every call. Rendering must stay a
	// pure function of (template, snapshot).
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byTitle := make(map[string]interface{}, len(snap))
	for _, id := range ids {
		v := snap[id]
		if _, taken := byTitle[v.Title]; taken {
			continue
		}
		byTitle[v.Title] = coerceValue(v)
	}

	env := map[string]interface{}{
		// v resolves a variable by its full title, covering titles that
		// are not valid identifiers.
		"v": func(title string) interface{} {
			if val, ok := byTitle[title]; ok {
				return val
			}
			panic(fmt.Sprintf("unknown variable %q", title))
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"num":   func(s string) float64 { return state.Coerce(s) },
		"str":   func(v interface{}) string { return formatResult(v) },
		"round": math.Round,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"abs":   math.Abs,
	}

	// Identifier-shaped titles are exposed directly; helper names win on
	// collision so the helper set stays fixed.
	for title, val := range byTitle {
		if !identRe.MatchString(title) {
			continue
		}
		if _, taken := env[title]; taken {
			continue
		}
		env[title] = val
	}
	return env
}

// coerceValue converts a stored string to the evaluation type declared
// for its variable. NUMBER values that fail to parse surface as NaN.
func coerceValue(v state.Value) interface{} {
	switch v.Type {
	case story.VarNumber:
		return state.Coerce(v.Value)
	case story.VarBoolean:
		return v.Value == "true"
	default:
		return v.Value
	}
}

// formatResult renders an evaluation result back into display text.
func formatResult(out interface{}) string {
	switch v := out.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return state.FormatNumber(v)
	case int:
		return state.FormatNumber(float64(v))
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
