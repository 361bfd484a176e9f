package runtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillforge/fable/pkg/expression"
	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/state"
	"github.com/quillforge/fable/pkg/story"
)

// ErrNoOrigin indicates a loopback was requested on an event that was
// not produced by a choice or input, so there is no decision point to
// return to.
var ErrNoOrigin = errors.New("event has no origin")

// ChoiceView is one selectable choice as shown to the player. Only
// choices with at least one open route appear in a view.
type ChoiceView struct {
	ID    string
	Title string
}

// InputView describes the free-form prompt of an INPUT passage.
type InputView struct {
	ID            string
	VariableID    string
	VariableTitle string
	Type          story.VariableType
}

// View is the rendered face of the current event: the passage text with
// expression spans resolved against the event's snapshot, plus whatever
// the player can do next.
type View struct {
	Event      journal.Event
	Passage    story.Passage
	Paragraphs []string
	Choices    []ChoiceView
	Input      *InputView
	// Ended is set on terminal passages and on CHOICE passages with no
	// currently open choice, which play as an implicit ending.
	Ended bool
}

// Transition is the outcome of an advance attempt. A blocked transition
// commits nothing: the session stays on the same event and the returned
// view re-renders it.
type Transition struct {
	Committed bool
	Blocked   bool
	Reason    string
	View      View
}

// Session drives one playthrough of one story over a journal. All
// transitions are serialized through an internal mutex; concurrent
// advance attempts queue rather than interleave.
type Session struct {
	mu       sync.Mutex
	repo     story.Repository
	log      *Log
	resolver *Resolver
	notifier *Notifier

	current journal.Event
	verbose bool
	resumed bool

	startedAt time.Time
}

// NewSession opens a session for the repository's story on the given
// journal store. If the journal holds an auto bookmark for the story,
// the session resumes from the bookmarked event; otherwise it starts a
// fresh playthrough and commits its INITIAL event.
func NewSession(ctx context.Context, repo story.Repository, store journal.Store, resolver *Resolver) (*Session, error) {
	s := &Session{
		repo:      repo,
		log:       NewLog(store, repo.Story().ID),
		resolver:  resolver,
		notifier:  NewNotifier(),
		startedAt: time.Now().UTC(),
	}

	head, err := s.log.Head(ctx)
	switch {
	case err == nil:
		s.current = head
		s.resumed = true
	case errors.Is(err, ErrNoBookmark):
		ev, err := s.start(ctx, "")
		if err != nil {
			return nil, err
		}
		s.current = ev
	default:
		return nil, err
	}
	return s, nil
}

// start commits a fresh INITIAL event at the story's starting
// destination, linked after prevID when restarting.
func (s *Session) start(ctx context.Context, prevID string) (journal.Event, error) {
	dest, err := s.startingDestination()
	if err != nil {
		return journal.Event{}, err
	}
	ev := s.newEvent(dest.ID, journal.EventInitial, state.Initial(s.repo.Variables()))
	ev.PrevID = prevID
	if prevID != "" {
		// Restart path: the caller commits the pair atomically.
		return ev, nil
	}
	if err := s.log.Append(ctx, ev, nil); err != nil {
		return journal.Event{}, err
	}
	return ev, nil
}

// startingDestination resolves where a fresh playthrough begins: the
// story's designated jump when one is set, otherwise the first passage
// of the first scene that has one.
func (s *Session) startingDestination() (story.Passage, error) {
	meta := s.repo.Story()
	if meta.JumpID != "" {
		jump, err := s.repo.Jump(meta.JumpID)
		if err != nil {
			return story.Passage{}, err
		}
		return s.resolveJump(jump)
	}
	for _, sceneID := range meta.SceneIDs {
		scene, err := s.repo.Scene(sceneID)
		if err != nil {
			continue
		}
		if len(scene.PassageIDs) > 0 {
			return s.repo.Passage(scene.PassageIDs[0])
		}
	}
	return story.Passage{}, story.ErrMissingStartingDestination
}

// resolveJump lands a jump on a concrete passage: its explicit passage
// when set, else the first passage of its scene.
func (s *Session) resolveJump(jump story.Jump) (story.Passage, error) {
	if jump.PassageID != "" {
		return s.repo.Passage(jump.PassageID)
	}
	if jump.SceneID != "" {
		scene, err := s.repo.Scene(jump.SceneID)
		if err != nil {
			return story.Passage{}, err
		}
		if len(scene.PassageIDs) > 0 {
			return s.repo.Passage(scene.PassageIDs[0])
		}
	}
	return story.Passage{}, fmt.Errorf("%w: jump %s resolves to no passage", story.ErrMissingDestination, jump.ID)
}

// View renders the current event without advancing.
func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.current)
}

func (s *Session) view(ev journal.Event) (View, error) {
	passage, err := s.repo.Passage(ev.PassageID)
	if err != nil {
		return View{}, err
	}
	v := View{
		Event:      ev,
		Passage:    passage,
		Paragraphs: s.paragraphs(passage.Content, ev.State),
	}

	if passage.Terminal || ev.Type == journal.EventGameOver {
		v.Ended = true
		return v, nil
	}

	switch passage.Type {
	case story.PassageInput:
		in, ok := s.repo.InputForPassage(passage.ID)
		if !ok {
			return v, nil
		}
		iv := &InputView{ID: in.ID, VariableID: in.VariableID}
		if in.VariableID != "" {
			if variable, err := s.repo.Variable(in.VariableID); err == nil {
				iv.VariableTitle = variable.Title
				iv.Type = variable.Type
			}
		}
		v.Input = iv
	default:
		for _, c := range s.repo.ChoicesForPassage(passage.ID) {
			open, err := s.resolver.OpenRoutes(s.repo, s.repo.RoutesFromOrigin(c.ID), ev.State)
			if err != nil {
				return View{}, err
			}
			if len(open) > 0 {
				v.Choices = append(v.Choices, ChoiceView{
					ID:    c.ID,
					Title: expression.Render(c.Title, ev.State),
				})
			}
		}
		if len(v.Choices) == 0 {
			v.Ended = true
		}
	}
	return v, nil
}

func (s *Session) paragraphs(content string, snap state.Snapshot) []string {
	if !s.verbose {
		return expression.Paragraphs(content, snap)
	}
	return strings.Split(expression.RenderVerbose(content, snap), "\n\n")
}

// AdvanceByChoice takes the named choice on the current passage. The
// choice's routes are resolved against the current snapshot; if none is
// open the transition blocks and nothing is committed.
func (s *Session) AdvanceByChoice(ctx context.Context, choiceID string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	choice, err := s.repo.Choice(choiceID)
	if err != nil {
		return Transition{}, err
	}
	if choice.PassageID != s.current.PassageID {
		return Transition{}, fmt.Errorf("choice %s does not belong to passage %s", choiceID, s.current.PassageID)
	}

	route, ok, err := s.resolver.Resolve(s.repo, s.repo.RoutesFromOrigin(choiceID), s.current.State)
	if err != nil {
		return Transition{}, err
	}
	if !ok {
		return s.blocked("no open route for this choice")
	}
	result := choice.Title
	return s.commit(ctx, route, choiceID, s.current.State, journal.EventChoice, &result)
}

// AdvanceByInput submits a value on the current INPUT passage. The raw
// value must parse under the bound variable's type; routes are then
// resolved against a working snapshot that already carries the value,
// so the submitted value can gate its own routes. A blocked resolution
// discards the working snapshot entirely.
func (s *Session) AdvanceByInput(ctx context.Context, inputID, raw string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := s.repo.Input(inputID)
	if err != nil {
		return Transition{}, err
	}
	if in.PassageID != s.current.PassageID {
		return Transition{}, fmt.Errorf("input %s does not belong to passage %s", inputID, s.current.PassageID)
	}
	if in.VariableID == "" {
		return s.blocked("input is not bound to a variable")
	}
	variable, err := s.repo.Variable(in.VariableID)
	if err != nil {
		return Transition{}, err
	}
	value, reason, ok := validateInput(variable.Type, raw)
	if !ok {
		return s.blocked(reason)
	}

	working := s.current.State.With(in.VariableID, value)
	route, ok, err := s.resolver.Resolve(s.repo, s.repo.RoutesFromOrigin(inputID), working)
	if err != nil {
		return Transition{}, err
	}
	if !ok {
		return s.blocked("no open route for this response")
	}
	return s.commit(ctx, route, inputID, working, journal.EventInput, &value)
}

// validateInput checks a raw submission against the declared variable
// type and returns the canonical value to store. NUMBER and BOOLEAN
// submissions are trimmed; STRING, URL, and IMAGE accept anything as-is.
func validateInput(t story.VariableType, raw string) (string, string, bool) {
	switch t {
	case story.VarNumber:
		v := strings.TrimSpace(raw)
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "", "value is not a number", false
		}
		return v, "", true
	case story.VarBoolean:
		v := strings.TrimSpace(raw)
		if v != "true" && v != "false" {
			return "", "value is not true or false", false
		}
		return v, "", true
	}
	return raw, "", true
}

// commit resolves the route's destination, applies its effects, appends
// the resulting event, and publishes it.
func (s *Session) commit(ctx context.Context, route story.Route, originID string, base state.Snapshot, evType journal.EventType, prevResult *string) (Transition, error) {
	dest, err := s.destination(route)
	if err != nil {
		return Transition{}, err
	}
	next := state.Apply(s.repo.EffectsForRoute(route.ID), base)
	if dest.Terminal {
		evType = journal.EventGameOver
	}

	ev := s.newEvent(dest.ID, evType, next)
	ev.PrevID = s.current.ID
	ev.OriginID = originID
	if err := s.log.Append(ctx, ev, prevResult); err != nil {
		return Transition{}, err
	}
	s.current = ev
	s.notifier.publish(ev)

	v, err := s.view(ev)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Committed: true, View: v}, nil
}

// destination lands a route on its concrete passage, following jump
// indirection when the route targets one.
func (s *Session) destination(route story.Route) (story.Passage, error) {
	switch route.DestinationType {
	case story.DestinationJump:
		jump, err := s.repo.Jump(route.DestinationID)
		if err != nil {
			return story.Passage{}, err
		}
		return s.resolveJump(jump)
	default:
		return s.repo.Passage(route.DestinationID)
	}
}

// Loopback steps back to the decision point that produced the current
// event, preserving the current snapshot unchanged. Valid only on
// events that carry an origin; the loopback is itself a committed event
// so the history records the retreat.
func (s *Session) Loopback(ctx context.Context) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.OriginID == "" {
		return Transition{}, ErrNoOrigin
	}

	var passageID string
	var evType journal.EventType
	if c, err := s.repo.Choice(s.current.OriginID); err == nil {
		passageID = c.PassageID
		evType = journal.EventChoiceLoopback
	} else if in, err := s.repo.Input(s.current.OriginID); err == nil {
		passageID = in.PassageID
		evType = journal.EventInputLoopback
	} else {
		return Transition{}, fmt.Errorf("origin %s is neither a choice nor an input", s.current.OriginID)
	}

	ev := s.newEvent(passageID, evType, s.current.State)
	ev.PrevID = s.current.ID
	if err := s.log.Append(ctx, ev, nil); err != nil {
		return Transition{}, err
	}
	s.current = ev
	s.notifier.publish(ev)

	v, err := s.view(ev)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Committed: true, View: v}, nil
}

// Restart abandons the current playthrough and begins a fresh one: a
// RESTART marker closing the old life and a new INITIAL event with
// re-seeded state, committed as one atomic pair. History queries never
// cross the marker backward.
func (s *Session) Restart(ctx context.Context) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boundary := s.newEvent(s.current.PassageID, journal.EventRestart, s.current.State)
	boundary.PrevID = s.current.ID

	initial, err := s.start(ctx, boundary.ID)
	if err != nil {
		return Transition{}, err
	}
	initial.UpdatedAt = boundary.UpdatedAt.Add(time.Millisecond)

	if err := s.log.AppendPair(ctx, boundary, initial, "(restart)"); err != nil {
		return Transition{}, err
	}
	s.current = initial
	s.notifier.publish(boundary)
	s.notifier.publish(initial)

	v, err := s.view(initial)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Committed: true, View: v}, nil
}

// blocked re-renders the current event with a refusal reason attached.
func (s *Session) blocked(reason string) (Transition, error) {
	v, err := s.view(s.current)
	if err != nil {
		return Transition{}, err
	}
	return Transition{Blocked: true, Reason: reason, View: v}, nil
}

// History returns up to limit events ending at the current one, newest
// first, trimmed at the nearest restart boundary.
func (s *Session) History(ctx context.Context, limit int) ([]journal.Event, error) {
	s.mu.Lock()
	head := s.current.ID
	s.mu.Unlock()
	return s.log.Recent(ctx, head, limit)
}

// Snapshot returns a copy of the current state snapshot.
func (s *Session) Snapshot() state.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.State.Clone()
}

// Current returns the current event.
func (s *Session) Current() journal.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Resumed reports whether the session picked up an existing bookmark
// rather than starting fresh.
func (s *Session) Resumed() bool { return s.resumed }

// Subscribe registers an observer for committed events. The returned
// cancel func must be called when the observer is done.
func (s *Session) Subscribe(buffer int) (<-chan journal.Event, func()) {
	return s.notifier.Subscribe(buffer)
}

// SetVerboseExpressions toggles diagnostic rendering of failed
// expression spans; off, failures collapse to a uniform marker.
func (s *Session) SetVerboseExpressions(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbose = on
}

// VerboseExpressions reports the current diagnostic-rendering setting.
func (s *Session) VerboseExpressions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verbose
}

func (s *Session) newEvent(passageID string, t journal.EventType, snap state.Snapshot) journal.Event {
	return journal.Event{
		ID:        uuid.NewString(),
		StoryID:   s.repo.Story().ID,
		PassageID: passageID,
		State:     snap,
		Type:      t,
		UpdatedAt: time.Now().UTC(),
	}
}
