package story

import "fmt"

// Repository is the read-only structural view of one story, shared for
// the whole session. Lookups are id-indexed; the set-oriented queries
// exist because route resolution fans out over many routes per decision
// point and must not degrade into per-route lookups.
type Repository interface {
	Story() Metadata

	Variable(id string) (Variable, error)
	Variables() []Variable

	Passage(id string) (Passage, error)
	Scene(id string) (Scene, error)
	Jump(id string) (Jump, error)
	Choice(id string) (Choice, error)
	Input(id string) (Input, error)

	// ChoicesForPassage returns the passage's choices in authored order.
	ChoicesForPassage(passageID string) []Choice
	// InputForPassage returns the input bound to an INPUT passage.
	InputForPassage(passageID string) (Input, bool)

	// RoutesFromOrigin returns every route leaving the given choice,
	// input, or passage, in authored order.
	RoutesFromOrigin(originID string) []Route
	// ConditionsForRoutes returns the gate clauses for a set of routes
	// in one lookup, keyed by route id.
	ConditionsForRoutes(routeIDs []string) map[string][]Condition
	// EffectsForRoute returns a route's mutations in authored order.
	EffectsForRoute(routeID string) []Effect
}

// repository is the in-memory arena implementation backing Repository.
// The graph is held as id-indexed maps with edges as id references —
// never as parent-owned tree nodes, since routes cycle back arbitrarily.
type repository struct {
	story Metadata

	variables map[string]Variable
	varOrder  []string
	passages  map[string]Passage
	scenes    map[string]Scene
	jumps     map[string]Jump
	choices   map[string]Choice
	inputs    map[string]Input

	choicesByPassage map[string][]Choice
	inputByPassage   map[string]Input
	routesByOrigin   map[string][]Route
	condsByRoute     map[string][]Condition
	effectsByRoute   map[string][]Effect
}

// NewRepository builds an id-indexed repository from a loaded bundle,
// precomputing the adjacency maps the runtime queries per transition.
func NewRepository(b *Bundle) Repository {
	r := &repository{
		story:            b.Story,
		variables:        make(map[string]Variable, len(b.Variables)),
		varOrder:         make([]string, 0, len(b.Variables)),
		passages:         make(map[string]Passage, len(b.Passages)),
		scenes:           make(map[string]Scene, len(b.Scenes)),
		jumps:            make(map[string]Jump, len(b.Jumps)),
		choices:          make(map[string]Choice, len(b.Choices)),
		inputs:           make(map[string]Input, len(b.Inputs)),
		choicesByPassage: make(map[string][]Choice),
		inputByPassage:   make(map[string]Input),
		routesByOrigin:   make(map[string][]Route),
		condsByRoute:     make(map[string][]Condition),
		effectsByRoute:   make(map[string][]Effect),
	}

	for _, v := range b.Variables {
		r.variables[v.ID] = v
		r.varOrder = append(r.varOrder, v.ID)
	}
	for _, p := range b.Passages {
		r.passages[p.ID] = p
	}
	for _, s := range b.Scenes {
		r.scenes[s.ID] = s
	}
	for _, j := range b.Jumps {
		r.jumps[j.ID] = j
	}
	for _, c := range b.Choices {
		r.choices[c.ID] = c
	}
	for _, in := range b.Inputs {
		r.inputs[in.ID] = in
		r.inputByPassage[in.PassageID] = in
	}
	for _, rt := range b.Routes {
		r.routesByOrigin[rt.OriginID] = append(r.routesByOrigin[rt.OriginID], rt)
	}
	for _, c := range b.Conditions {
		r.condsByRoute[c.RouteID] = append(r.condsByRoute[c.RouteID], c)
	}
	for _, e := range b.Effects {
		r.effectsByRoute[e.RouteID] = append(r.effectsByRoute[e.RouteID], e)
	}

	// Choice order follows the passage's authored choice list, not the
	// bundle's flat collection order.
	for _, p := range b.Passages {
		for _, cid := range p.ChoiceIDs {
			if c, ok := r.choices[cid]; ok {
				r.choicesByPassage[p.ID] = append(r.choicesByPassage[p.ID], c)
			}
		}
	}

	return r
}

func (r *repository) Story() Metadata { return r.story }

func (r *repository) Variable(id string) (Variable, error) {
	v, ok := r.variables[id]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %s", ErrUnknownVariable, id)
	}
	return v, nil
}

func (r *repository) Variables() []Variable {
	out := make([]Variable, 0, len(r.varOrder))
	for _, id := range r.varOrder {
		out = append(out, r.variables[id])
	}
	return out
}

func (r *repository) Passage(id string) (Passage, error) {
	p, ok := r.passages[id]
	if !ok {
		return Passage{}, fmt.Errorf("%w: %s", ErrUnknownPassage, id)
	}
	return p, nil
}

func (r *repository) Scene(id string) (Scene, error) {
	s, ok := r.scenes[id]
	if !ok {
		return Scene{}, fmt.Errorf("%w: scene %s", ErrMissingDestination, id)
	}
	return s, nil
}

func (r *repository) Jump(id string) (Jump, error) {
	j, ok := r.jumps[id]
	if !ok {
		return Jump{}, fmt.Errorf("%w: jump %s", ErrMissingDestination, id)
	}
	return j, nil
}

func (r *repository) Choice(id string) (Choice, error) {
	c, ok := r.choices[id]
	if !ok {
		return Choice{}, fmt.Errorf("unknown choice: %s", id)
	}
	return c, nil
}

func (r *repository) Input(id string) (Input, error) {
	in, ok := r.inputs[id]
	if !ok {
		return Input{}, fmt.Errorf("unknown input: %s", id)
	}
	return in, nil
}

func (r *repository) ChoicesForPassage(passageID string) []Choice {
	return r.choicesByPassage[passageID]
}

func (r *repository) InputForPassage(passageID string) (Input, bool) {
	in, ok := r.inputByPassage[passageID]
	return in, ok
}

func (r *repository) RoutesFromOrigin(originID string) []Route {
	return r.routesByOrigin[originID]
}

func (r *repository) ConditionsForRoutes(routeIDs []string) map[string][]Condition {
	out := make(map[string][]Condition, len(routeIDs))
	for _, id := range routeIDs {
		if conds, ok := r.condsByRoute[id]; ok {
			out[id] = conds
		}
	}
	return out
}

func (r *repository) EffectsForRoute(routeID string) []Effect {
	return r.effectsByRoute[routeID]
}
