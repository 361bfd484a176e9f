package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
)

// --- Tea messages ---

// transitionMsg is sent after an advance, loopback, or restart completes.
type transitionMsg struct {
	tr  runtime.Transition
	err error
}

// historyMsg returns fetched recent events to the model.
type historyMsg struct {
	events []journal.Event
	err    error
}

// --- Modes and overlays ---

type playMode int

const (
	modeChoice playMode = iota
	modeInput
	modeEnded
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayXray
	overlayHistory
)

// --- Model ---

// Model is the top-level Bubble Tea model for the story player.
type Model struct {
	repo    story.Repository
	session *runtime.Session

	// Current rendered position
	view    runtime.View
	mode    playMode
	blocked string

	// Components
	passage viewport.Model
	input   textinput.Model

	cursor  int
	overlay overlayKind
	history []journal.Event

	fatalErr string
	showHelp bool

	width  int
	height int
	ready  bool
}

// Config holds the parameters needed to launch the player.
type Config struct {
	Repo    story.Repository
	Session *runtime.Session
}

// Run starts the player and blocks until the user quits.
func Run(cfg Config) error {
	m, err := NewModel(cfg)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// NewModel builds the initial model from the session's current position.
func NewModel(cfg Config) (Model, error) {
	v, err := cfg.Session.View()
	if err != nil {
		return Model{}, fmt.Errorf("render current passage: %w", err)
	}

	ti := textinput.New()
	ti.Placeholder = "your answer"
	ti.CharLimit = 256

	m := Model{
		repo:    cfg.Repo,
		session: cfg.Session,
		input:   ti,
	}
	m.applyView(v)
	return m, nil
}

func (m Model) Init() tea.Cmd {
	if m.mode == modeInput {
		return textinput.Blink
	}
	return nil
}

// applyView swaps in a freshly rendered view and derives the play mode.
func (m *Model) applyView(v runtime.View) {
	m.view = v
	m.cursor = 0
	m.blocked = ""
	switch {
	case v.Ended:
		m.mode = modeEnded
		m.input.Blur()
	case v.Input != nil:
		m.mode = modeInput
		m.input.SetValue("")
		m.input.Focus()
	default:
		m.mode = modeChoice
		m.input.Blur()
	}
	if m.ready {
		m.passage.SetContent(m.passageContent())
		m.passage.GotoTop()
	}
}

// --- Commands ---

func (m Model) chooseCmd(choiceID string) tea.Cmd {
	return func() tea.Msg {
		tr, err := m.session.AdvanceByChoice(context.Background(), choiceID)
		return transitionMsg{tr: tr, err: err}
	}
}

func (m Model) submitCmd(inputID, raw string) tea.Cmd {
	return func() tea.Msg {
		tr, err := m.session.AdvanceByInput(context.Background(), inputID, raw)
		return transitionMsg{tr: tr, err: err}
	}
}

func (m Model) loopbackCmd() tea.Cmd {
	return func() tea.Msg {
		tr, err := m.session.Loopback(context.Background())
		return transitionMsg{tr: tr, err: err}
	}
}

func (m Model) restartCmd() tea.Cmd {
	return func() tea.Msg {
		tr, err := m.session.Restart(context.Background())
		return transitionMsg{tr: tr, err: err}
	}
}

func (m Model) historyCmd() tea.Cmd {
	return func() tea.Msg {
		events, err := m.session.History(context.Background(), 20)
		return historyMsg{events: events, err: err}
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case transitionMsg:
		if msg.err != nil {
			if msg.err == runtime.ErrNoOrigin {
				m.blocked = "nothing to go back to"
				return m, nil
			}
			m.fatalErr = msg.err.Error()
			return m, nil
		}
		if msg.tr.Blocked {
			m.blocked = msg.tr.Reason
			return m, nil
		}
		m.applyView(msg.tr.View)
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.blocked = msg.err.Error()
			return m, nil
		}
		m.history = msg.events
		m.overlay = overlayHistory
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.passage, cmd = m.passage.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays swallow input first.
	if m.overlay != overlayNone {
		switch msg.String() {
		case "esc", "x", "H":
			m.overlay = overlayNone
		case "v":
			if m.overlay == overlayXray {
				m.session.SetVerboseExpressions(!m.session.VerboseExpressions())
				if v, err := m.session.View(); err == nil {
					m.applyView(v)
					m.overlay = overlayXray
				}
			}
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	if m.fatalErr != "" {
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}

	// Text entry mode routes almost everything to the textinput.
	if m.mode == modeInput {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+x":
			m.overlay = overlayXray
			return m, nil
		case "esc":
			return m, m.loopbackCmd()
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				m.blocked = "enter a value"
				return m, nil
			}
			return m, m.submitCmd(m.view.Input.ID, raw)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, keys.Xray):
		m.overlay = overlayXray
		return m, nil
	case key.Matches(msg, keys.History):
		return m, m.historyCmd()
	case key.Matches(msg, keys.Restart):
		return m, m.restartCmd()
	case key.Matches(msg, keys.Back):
		return m, m.loopbackCmd()
	case key.Matches(msg, keys.PgUp):
		m.passage.HalfViewUp()
		return m, nil
	case key.Matches(msg, keys.PgDown):
		m.passage.HalfViewDown()
		return m, nil
	}

	if m.mode != modeChoice {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.view.Choices)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Select):
		if m.cursor < len(m.view.Choices) {
			return m, m.chooseCmd(m.view.Choices[m.cursor].ID)
		}
	default:
		s := msg.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			idx := int(s[0] - '1')
			if idx < len(m.view.Choices) {
				m.cursor = idx
				return m, m.chooseCmd(m.view.Choices[idx].ID)
			}
		}
	}
	return m, nil
}

// --- Layout & view ---

func (m *Model) layout() {
	w := m.width - 4
	h := m.height - 10
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.passage = viewport.New(w, h)
		m.ready = true
	} else {
		m.passage.Width = w
		m.passage.Height = h
	}
	m.input.Width = w - 4
	m.passage.SetContent(m.passageContent())
}

func (m *Model) passageContent() string {
	md := strings.Join(m.view.Paragraphs, "\n\n")
	return renderMarkdownWidth(md, m.passage.Width-2)
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.fatalErr != "" {
		return errorStyle.Render("fatal: "+m.fatalErr) + "\n\npress q to quit\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(panelBorder.Width(m.width - 2).Render(m.passage.View()))
	b.WriteString("\n")
	b.WriteString(m.renderActions())
	if m.blocked != "" {
		b.WriteString("\n" + blockedStyle.Render(GlyphBlocked+" "+m.blocked))
	}
	b.WriteString("\n")
	b.WriteString(keyBarStyle.Render(keyBarText(m.mode, m.overlay)))

	base := b.String()
	switch m.overlay {
	case overlayXray:
		return m.placeOverlay(m.renderXray())
	case overlayHistory:
		return m.placeOverlay(m.renderHistory())
	}
	if m.showHelp {
		return m.placeOverlay(m.renderHelp())
	}
	return base
}

func (m Model) renderHeader() string {
	meta := m.repo.Story()
	title := headerStyle.Render(meta.Title)
	scene := ""
	if m.view.Passage.SceneID != "" {
		if sc, err := m.repo.Scene(m.view.Passage.SceneID); err == nil && sc.Title != "" {
			scene = keyDescStyle.Render(" · " + sc.Title)
		}
	}
	badge := ""
	if m.session.Resumed() {
		badge = "  " + resumeBadgeStyle.Render(GlyphBookmark+" resumed")
	}
	return title + scene + badge
}

func (m Model) renderActions() string {
	switch m.mode {
	case modeEnded:
		return endingBannerStyle.Render(GlyphEnding + " The End")
	case modeInput:
		prompt := "Your answer"
		if m.view.Input.VariableTitle != "" {
			prompt = m.view.Input.VariableTitle
		}
		return promptStyle.Render(GlyphInput+" "+prompt+": ") + m.input.View()
	}

	var b strings.Builder
	for i, c := range m.view.Choices {
		line := fmt.Sprintf("  %d. %s", i+1, c.Title)
		if i == m.cursor {
			line = choiceCurrent.Render(GlyphChoice + line[1:])
		} else {
			line = choiceNormal.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderXray() string {
	var b strings.Builder
	b.WriteString(overlayTitle.Render("XRAY — state snapshot"))
	b.WriteString("\n\n")

	snap := m.session.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return snap[ids[i]].Title < snap[ids[j]].Title })
	if len(ids) == 0 {
		b.WriteString(keyDescStyle.Render("(no variables)") + "\n")
	}
	for _, id := range ids {
		v := snap[id]
		b.WriteString(fmt.Sprintf("%s %s = %s\n",
			varNameStyle.Render(v.Title),
			keyDescStyle.Render("("+string(v.Type)+")"),
			varValueStyle.Render(fmt.Sprintf("%q", v.Value))))
	}

	b.WriteString("\n")
	b.WriteString(keyDescStyle.Render(fmt.Sprintf("passage %s · event %s", m.view.Passage.ID, m.view.Event.ID)))
	b.WriteString("\n")
	verbose := "off"
	if m.session.VerboseExpressions() {
		verbose = "on"
	}
	b.WriteString(keyDescStyle.Render("expression diagnostics: " + verbose))
	return b.String()
}

func (m Model) renderHistory() string {
	var b strings.Builder
	b.WriteString(overlayTitle.Render("History — newest first"))
	b.WriteString("\n\n")
	if len(m.history) == 0 {
		b.WriteString(keyDescStyle.Render("(empty)"))
	}
	for _, ev := range m.history {
		title := ev.PassageID
		if p, err := m.repo.Passage(ev.PassageID); err == nil && p.Title != "" {
			title = p.Title
		}
		result := ""
		if ev.Result != "" {
			result = keyDescStyle.Render(" → " + ev.Result)
		}
		b.WriteString(fmt.Sprintf("%s %s%s\n",
			historyTypeStyle.Render(fmt.Sprintf("%-16s", ev.Type)), title, result))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(overlayTitle.Render("Keys"))
	b.WriteString("\n\n")
	for _, kb := range []key.Binding{
		keys.Select, keys.Up, keys.Down, keys.Back, keys.Restart,
		keys.Xray, keys.History, keys.PgUp, keys.PgDown, keys.Quit,
	} {
		h := kb.Help()
		b.WriteString(fmt.Sprintf("%s  %s\n", keyStyle.Render(fmt.Sprintf("%-8s", h.Key)), keyDescStyle.Render(h.Desc)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) placeOverlay(content string) string {
	w := m.width * 3 / 4
	if w < 40 {
		w = m.width - 4
	}
	box := overlayBorder.Width(w).Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
