package story

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "routes[2].originId")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a bundle file.
// Phase 1: Structural (strict JSON decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (graph consistency rules)
func ValidateFile(path string) (*Bundle, []*ValidationError) {
	b, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return b, Validate(b)
}

// Validate runs the semantic and domain phases on an already-decoded bundle.
func Validate(b *Bundle) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(b)...)
	all = append(all, ValidateDomain(b)...)
	return all
}

// HasErrors reports whether any validation record has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// validateSemantic validates the bundle against the generated JSON Schema.
func validateSemantic(b *Bundle) []*ValidationError {
	data, err := json.Marshal(b)
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("marshal for schema validation: %v", err),
			Severity: "error",
		}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("generate schema: %v", err),
			Severity: "error",
		}}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal schema: %v", err),
			Severity: "error",
		}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("bundle-v1.json", schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("add schema resource: %v", err),
			Severity: "error",
		}}
	}
	sch, err := c.Compile("bundle-v1.json")
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("compile schema: %v", err),
			Severity: "error",
		}}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal document: %v", err),
			Severity: "error",
		}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 graph-consistency validation.
// Returns a slice of errors and warnings; empty means valid.
func ValidateDomain(b *Bundle) []*ValidationError {
	var errs []*ValidationError

	variables := make(map[string]bool, len(b.Variables))
	passages := make(map[string]bool, len(b.Passages))
	scenes := make(map[string]bool, len(b.Scenes))
	jumps := make(map[string]bool, len(b.Jumps))
	choices := make(map[string]bool, len(b.Choices))
	inputs := make(map[string]bool, len(b.Inputs))
	routes := make(map[string]bool, len(b.Routes))

	addDup := func(set map[string]bool, id, path string) {
		if set[id] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path,
				Message:  fmt.Sprintf("duplicate id %q", id),
				Severity: "error",
			})
		}
		set[id] = true
	}

	for i, v := range b.Variables {
		addDup(variables, v.ID, fmt.Sprintf("variables[%d].id", i))
	}
	for i, p := range b.Passages {
		addDup(passages, p.ID, fmt.Sprintf("passages[%d].id", i))
	}
	for i, s := range b.Scenes {
		addDup(scenes, s.ID, fmt.Sprintf("scenes[%d].id", i))
	}
	for i, j := range b.Jumps {
		addDup(jumps, j.ID, fmt.Sprintf("jumps[%d].id", i))
	}
	for i, c := range b.Choices {
		addDup(choices, c.ID, fmt.Sprintf("choices[%d].id", i))
	}
	for i, in := range b.Inputs {
		addDup(inputs, in.ID, fmt.Sprintf("inputs[%d].id", i))
	}
	for i, r := range b.Routes {
		addDup(routes, r.ID, fmt.Sprintf("routes[%d].id", i))
	}

	// Variable titles are the lookup key for expression spans, so a
	// shared title makes {title} references ambiguous.
	varTitles := make(map[string]bool, len(b.Variables))
	for i, v := range b.Variables {
		if varTitles[v.Title] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("variables[%d].title", i),
				Message:  fmt.Sprintf("duplicate variable title %q", v.Title),
				Severity: "warning",
			})
		}
		varTitles[v.Title] = true
	}

	// Scene passage references must resolve.
	for i, s := range b.Scenes {
		for j, pid := range s.PassageIDs {
			if !passages[pid] {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("scenes[%d].passages[%d]", i, j),
					Message:  fmt.Sprintf("scene %q references unknown passage %q", s.ID, pid),
					Severity: "error",
				})
			}
		}
	}

	// Passage choice/input references must resolve; an INPUT passage must
	// carry a bound variable.
	for i, p := range b.Passages {
		switch p.Type {
		case PassageChoice:
			for j, cid := range p.ChoiceIDs {
				if !choices[cid] {
					errs = append(errs, &ValidationError{
						Phase:    "domain",
						Path:     fmt.Sprintf("passages[%d].choices[%d]", i, j),
						Message:  fmt.Sprintf("passage %q references unknown choice %q", p.ID, cid),
						Severity: "error",
					})
				}
			}
			if len(p.ChoiceIDs) == 0 && !p.Terminal {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("passages[%d]", i),
					Message:  fmt.Sprintf("passage %q has no choices and is not an ending (implicit dead end)", p.ID),
					Severity: "warning",
				})
			}
		case PassageInput:
			if p.InputID == "" {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("passages[%d].input", i),
					Message:  fmt.Sprintf("INPUT passage %q has no input", p.ID),
					Severity: "error",
				})
			} else if !inputs[p.InputID] {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("passages[%d].input", i),
					Message:  fmt.Sprintf("passage %q references unknown input %q", p.ID, p.InputID),
					Severity: "error",
				})
			}
		}
	}

	// Inputs missing a bound variable block play; surface at authoring time.
	for i, in := range b.Inputs {
		if in.VariableID == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("inputs[%d].variableId", i),
				Message:  fmt.Sprintf("input %q has no bound variable", in.ID),
				Severity: "error",
			})
		} else if !variables[in.VariableID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("inputs[%d].variableId", i),
				Message:  fmt.Sprintf("input %q references unknown variable %q", in.ID, in.VariableID),
				Severity: "error",
			})
		}
	}

	// Route endpoints must exist on both sides.
	for i, r := range b.Routes {
		originOK := false
		switch r.OriginType {
		case OriginChoice:
			originOK = choices[r.OriginID]
		case OriginInput:
			originOK = inputs[r.OriginID]
		case OriginPassage:
			originOK = passages[r.OriginID]
		}
		if !originOK {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("routes[%d].originId", i),
				Message:  fmt.Sprintf("route %q origin %q (%s) does not exist", r.ID, r.OriginID, r.OriginType),
				Severity: "error",
			})
		}
		destOK := false
		switch r.DestinationType {
		case DestinationPassage:
			destOK = passages[r.DestinationID]
		case DestinationJump:
			destOK = jumps[r.DestinationID]
		}
		if !destOK {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("routes[%d].destinationId", i),
				Message:  fmt.Sprintf("route %q destination %q (%s) does not exist", r.ID, r.DestinationID, r.DestinationType),
				Severity: "error",
			})
		}
	}

	// Condition variable references must exist; conditions on unknown
	// routes can never gate anything.
	for i, c := range b.Conditions {
		if !routes[c.RouteID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("conditions[%d].routeId", i),
				Message:  fmt.Sprintf("condition %q references unknown route %q", c.ID, c.RouteID),
				Severity: "error",
			})
		}
		if !variables[c.VariableID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("conditions[%d].variableId", i),
				Message:  fmt.Sprintf("condition %q references unknown variable %q", c.ID, c.VariableID),
				Severity: "error",
			})
		}
	}

	// Effects referencing a deleted variable are skipped at play time by
	// contract, so this is a warning, not an error.
	for i, e := range b.Effects {
		if !routes[e.RouteID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("effects[%d].routeId", i),
				Message:  fmt.Sprintf("effect %q references unknown route %q", e.ID, e.RouteID),
				Severity: "error",
			})
		}
		if !variables[e.VariableID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("effects[%d].variableId", i),
				Message:  fmt.Sprintf("effect %q references unknown variable %q (skipped at play time)", e.ID, e.VariableID),
				Severity: "warning",
			})
		}
	}

	// Jump destinations must resolve to something concrete.
	for i, j := range b.Jumps {
		if j.SceneID == "" && j.PassageID == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("jumps[%d]", i),
				Message:  fmt.Sprintf("jump %q has neither scene nor passage", j.ID),
				Severity: "error",
			})
			continue
		}
		if j.SceneID != "" && !scenes[j.SceneID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("jumps[%d].sceneId", i),
				Message:  fmt.Sprintf("jump %q references unknown scene %q", j.ID, j.SceneID),
				Severity: "error",
			})
		}
		if j.PassageID != "" && !passages[j.PassageID] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("jumps[%d].passageId", i),
				Message:  fmt.Sprintf("jump %q references unknown passage %q", j.ID, j.PassageID),
				Severity: "error",
			})
		}
	}

	// Story-level references.
	if b.Story.JumpID != "" && !jumps[b.Story.JumpID] {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "story.jump",
			Message:  fmt.Sprintf("story references unknown jump %q", b.Story.JumpID),
			Severity: "error",
		})
	}
	for i, sid := range b.Story.SceneIDs {
		if !scenes[sid] {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("story.scenes[%d]", i),
				Message:  fmt.Sprintf("story references unknown scene %q", sid),
				Severity: "error",
			})
		}
	}

	return errs
}
