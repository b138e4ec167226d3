// Command castnav-tui is a terminal character-graph explorer. It lists the
// works in the library, opens one focused on its protagonist and animates
// the force layout while the reader moves the focus around.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/latebit/castnav/internal/config"
	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/logging"
	"github.com/latebit/castnav/internal/markdown"
	"github.com/latebit/castnav/internal/metrics"
	"github.com/latebit/castnav/internal/navigation"
	"github.com/latebit/castnav/internal/session"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/works"
)

type screen int

const (
	screenWorks screen = iota
	screenGraph
	screenDetails
)

const (
	headerHeight = 2 // title + stats
	footerHeight = 1 // status bar
	fitPadding   = 2
	maxScale     = 0.5
)

// tickMsg advances the layout of run. Ticks from an older run are dropped.
type tickMsg struct {
	run uint64
}

// eventLog keeps the last session event for the status bar. It lives
// behind a pointer so the subscription survives model copies.
type eventLog struct {
	last string
}

type model struct {
	lib     *works.Library
	cfg     *config.Config
	mode    navigation.Mode
	log     *slog.Logger
	metrics *metrics.Registry

	screen    screen
	search    textinput.Model
	searching bool
	list      []works.Work
	listIdx   int

	work     works.Work
	sess     *session.Session
	events   *eventLog
	th       theme
	frame    view.Frame
	cam      view.Camera
	hasCam   bool
	cursor   string
	dragging string
	ticking  bool
	tickRun  uint64

	details viewport.Model
	err     error
	width   int
	height  int
	ready   bool

	initCmd tea.Cmd
}

func initialModel(lib *works.Library, cfg *config.Config, mode navigation.Mode, logger *slog.Logger, reg *metrics.Registry) model {
	ti := textinput.New()
	ti.Placeholder = "search title, author or description"
	ti.Prompt = "/ "

	m := model{
		lib:     lib,
		cfg:     cfg,
		mode:    mode,
		log:     logger,
		metrics: reg,
		search:  ti,
		th:      newTheme(""),
	}
	m.refreshList()
	return m
}

func (m model) Init() tea.Cmd {
	return m.initCmd
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.closeSession()
			return m, tea.Quit
		}
		switch m.screen {
		case screenGraph:
			return m.handleGraphKey(msg)
		case screenDetails:
			return m.handleDetailsKey(msg)
		default:
			return m.handleWorksKey(msg)
		}

	case tea.MouseMsg:
		if m.screen == screenGraph {
			return m.handleMouse(msg)
		}
		if m.screen == screenDetails {
			var cmd tea.Cmd
			m.details, cmd = m.details.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = m.width - 4
		if !m.ready {
			m.details = viewport.New(m.width, m.canvasHeight())
			m.ready = true
		} else {
			m.details.Width = m.width
			m.details.Height = m.canvasHeight()
		}
		m.hasCam = false
		m.refresh()
		return m, nil

	case tickMsg:
		if m.sess == nil || !m.ticking || msg.run != m.tickRun {
			return m, nil
		}
		m.sess.Step()
		m.refresh()
		if m.sess.Settled() {
			m.ticking = false
			return m, nil
		}
		return m, tick(m.cfg.TickInterval, msg.run)
	}
	return m, nil
}

func tick(interval time.Duration, run uint64) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg { return tickMsg{run: run} })
}

// schedule starts a tick chain for the current run unless one is already
// running or the layout is at rest.
func (m *model) schedule() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	run := m.sess.Run()
	if m.ticking && run == m.tickRun {
		return nil
	}
	if m.sess.Settled() {
		m.ticking = false
		return nil
	}
	m.ticking, m.tickRun = true, run
	return tick(m.cfg.TickInterval, run)
}

func (m model) canvasHeight() int {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	return h
}

// refresh projects a new frame and refits the camera when the session
// asks for it.
func (m *model) refresh() {
	if m.sess == nil {
		return
	}
	m.frame = m.sess.Frame()
	if m.frame.Fit || !m.hasCam {
		// Labels hang to the right of their node, so the fitted area
		// leaves room for the longest one.
		w := m.width - min(labelWidth(m.frame), m.width/2)
		m.cam = view.Fit(m.frame.Bounds(), float64(w), float64(m.canvasHeight()), fitPadding, aspect, maxScale)
		m.hasCam = true
	}
	if _, ok := m.frame.Node(m.cursor); !ok {
		m.cursor = m.frame.Stats.Focus
	}
}

func labelWidth(f view.Frame) int {
	w := 0
	for _, n := range f.Nodes {
		w = max(w, len([]rune(n.Label))+3)
	}
	return w
}

func (m *model) refreshList() {
	list, err := m.lib.Search(m.search.Value())
	if err != nil {
		m.log.Warn("list works", "error", err)
	}
	m.list = list
	if m.listIdx >= len(m.list) {
		m.listIdx = max(len(m.list)-1, 0)
	}
}

func (m *model) open(id string) tea.Cmd {
	w, g, err := m.lib.Load(id)
	if err != nil {
		m.err = err
		return nil
	}
	s, err := session.New(g, session.Options{
		Work:        w.ID,
		Protagonist: w.Protagonist,
		Mode:        m.mode,
		Params:      m.cfg.Physics,
		Logger:      m.log,
		Metrics:     m.metrics,
	})
	if err != nil {
		m.err = err
		return nil
	}
	m.closeSession()
	events := &eventLog{}
	s.Subscribe(func(e view.Event) { events.last = e.String() })

	m.work, m.sess, m.events = w, s, events
	m.th = newTheme(w.CoverColor)
	m.screen = screenGraph
	m.cursor = s.Focus()
	m.hasCam, m.ticking, m.err = false, false, nil
	m.refresh()
	return m.schedule()
}

func (m *model) closeSession() {
	if m.sess == nil {
		return
	}
	m.sess.Close()
	m.sess, m.events, m.ticking, m.dragging = nil, nil, false, ""
}

func (m model) handleWorksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEscape:
			m.searching = false
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.refreshList()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "j", "down":
		if m.listIdx < len(m.list)-1 {
			m.listIdx++
		}
	case "k", "up":
		if m.listIdx > 0 {
			m.listIdx--
		}
	case "enter":
		if m.listIdx < len(m.list) {
			cmd := m.open(m.list[m.listIdx].ID)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) handleGraphKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	focus := m.sess.Focus()
	switch msg.String() {
	case "q":
		m.closeSession()
		return m, tea.Quit
	case "esc":
		m.closeSession()
		m.screen = screenWorks
		return m, nil
	case "j", "down", "tab":
		m.moveCursor(1)
	case "k", "up", "shift+tab":
		m.moveCursor(-1)
	case "enter", "f":
		m.err = m.sess.SetFocus(m.cursor)
		if m.err == nil {
			m.cursor = m.sess.Focus()
		}
	case " ", "e":
		_, m.err = m.sess.ToggleExpand(m.cursor)
	case "b", "backspace":
		if m.sess.GoBack() {
			m.cursor = m.sess.Focus()
		} else {
			m.err = fmt.Errorf("history is empty")
		}
	case "r":
		if !m.sess.CanReset() {
			break
		}
		m.sess.Reset()
		m.cursor = m.sess.Focus()
	case "d":
		if m.err = m.sess.Select(m.cursor); m.err == nil {
			m.showDetails()
		}
	}
	if m.sess.Focus() != focus {
		// The session dropped any drag when the focus moved.
		m.dragging = ""
	}
	m.refresh()
	cmd := m.schedule()
	return m, cmd
}

func (m model) handleDetailsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.closeSession()
		return m, tea.Quit
	case "esc", "d":
		_ = m.sess.Select("")
		m.screen = screenGraph
		cmd := m.schedule()
		return m, cmd
	}
	var cmd tea.Cmd
	m.details, cmd = m.details.Update(msg)
	return m, cmd
}

func (m *model) moveCursor(delta int) {
	n := len(m.frame.Nodes)
	if n == 0 {
		return
	}
	idx := 0
	for i, node := range m.frame.Nodes {
		if node.ID == m.cursor {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%n + n) % n
	m.cursor = m.frame.Nodes[idx].ID
}

func (m *model) showDetails() {
	n, ok := m.sess.Details()
	if !ok {
		return
	}
	body := detailsMarkdown(n, m.sess.Graph())
	rendered, err := markdown.Render(body, m.width, "")
	if err != nil {
		rendered = body
	}
	m.details.SetContent(rendered)
	m.details.GotoTop()
	m.screen = screenDetails
}

// detailsMarkdown describes a character as a markdown document.
func detailsMarkdown(n graph.Node, g *graph.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Label)
	if n.Role != "" {
		fmt.Fprintf(&b, "*%s*\n\n", n.Role)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", n.Description)
	}
	edges := g.EdgesOf(n.ID)
	if len(edges) > 0 {
		b.WriteString("## Relationships\n\n")
		for _, e := range edges {
			other, _ := g.GetNode(e.Other(n.ID))
			label := e.Label
			if label == "" {
				label = "related"
			}
			fmt.Fprintf(&b, "- **%s**: %s", label, other.Label)
			if e.Description != "" {
				fmt.Fprintf(&b, " (%s)", markdown.Summary(e.Description, 80))
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// handleMouse drags nodes on the canvas. A press near a node grabs it, a
// press elsewhere only moves the cursor.
func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.sess == nil {
		return m, nil
	}
	wx, wy := m.cam.ToWorld(float64(msg.X), float64(msg.Y-headerHeight), aspect)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || m.cam.Scale == 0 {
			return m, nil
		}
		n, ok := m.frame.Nearest(wx, wy, 2/m.cam.Scale)
		if !ok {
			return m, nil
		}
		m.cursor = n.ID
		if m.err = m.sess.DragStart(n.ID, wx, wy); m.err == nil {
			m.dragging = n.ID
		}
	case tea.MouseActionMotion:
		if m.dragging == "" {
			return m, nil
		}
		m.err = m.sess.DragMove(m.dragging, wx, wy)
	case tea.MouseActionRelease:
		if m.dragging == "" {
			return m, nil
		}
		m.err = m.sess.DragEnd(m.dragging)
		m.dragging = ""
	}
	m.refresh()
	cmd := m.schedule()
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	switch m.screen {
	case screenGraph:
		return m.graphView()
	case screenDetails:
		return m.headerView() + "\n" + m.details.View() + "\n" + m.statusBarView()
	default:
		return m.worksView()
	}
}

func (m model) worksView() string {
	var b strings.Builder
	b.WriteString(m.th.header.Render("castnav"))
	b.WriteByte('\n')
	b.WriteString(m.search.View())
	b.WriteString("\n\n")
	if len(m.list) == 0 {
		b.WriteString("  No works found.\n")
	}
	for i, w := range m.list {
		cursor := "  "
		if i == m.listIdx {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-24s %s", cursor, w.Title, w.Author)
		if w.Year != "" {
			line += " (" + w.Year + ")"
		}
		if i == m.listIdx {
			line = m.th.cursor.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if m.err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString("\n  [Enter] open  [/] search  [q] quit\n")
	return b.String()
}

func (m model) headerView() string {
	title := m.th.header.Render(m.work.Title)
	focus := m.frame.Stats.Focus
	if n, ok := m.sess.Graph().GetNode(focus); ok {
		focus = n.Label
	}
	state := "moving"
	if m.frame.Settled {
		state = "settled"
	}
	stats := fmt.Sprintf(" focus %s · expanded %d · visible %d · relationships %d · %s",
		focus, m.frame.Stats.Expanded, m.frame.Stats.Visible, m.frame.Stats.Edges, state)
	return title + "\n" + lipgloss.NewStyle().Faint(true).Render(stats)
}

func (m model) graphView() string {
	c := drawFrame(m.frame, m.cam, m.width, m.canvasHeight(), m.cursor)
	return m.headerView() + "\n" + c.Render(m.th) + "\n" + m.statusBarView()
}

func (m model) statusBarView() string {
	style := lipgloss.NewStyle().Width(m.width).Padding(0, 1)
	if m.err != nil {
		return style.Foreground(lipgloss.Color("9")).Render("Error: " + m.err.Error())
	}
	if m.screen == screenDetails {
		return style.Faint(true).Render(fmt.Sprintf("[esc] back  [q] quit  %d%%", int(m.details.ScrollPercent()*100)))
	}
	parts := []string{"[enter] focus", "[space] expand", "[b] back", "[d] details"}
	if m.frame.CanReset {
		parts = append(parts, "[r] reset")
	}
	parts = append(parts, "[esc] works")
	if m.events != nil && m.events.last != "" {
		parts = append(parts, m.events.last)
	}
	return style.Faint(true).Render(strings.Join(parts, "  "))
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file")
	worksDir := flag.String("works", "", "works directory (overrides config)")
	expansion := flag.String("expansion", "", "expansion mode: cumulative, union or neighbors")
	logFile := flag.String("log-file", "", "log file (default: no logging)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *worksDir != "" {
		cfg.WorksDir = *worksDir
	}
	if *expansion != "" {
		cfg.Expansion = *expansion
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	mode, err := navigation.ParseMode(cfg.Expansion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs only go to a file.
	logger := logging.Discard()
	if cfg.LogFile != "" {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = logging.New(cfg.LogFormat, cfg.LogLevel, f)
	}

	lib, err := works.Open(cfg.WorksDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	reg := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, reg.Handler()); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	m := initialModel(lib, cfg, mode, logger, reg)
	if flag.NArg() > 0 {
		m.initCmd = m.open(flag.Arg(0))
		if m.err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", m.err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
