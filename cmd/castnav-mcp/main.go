// Command castnav-mcp is an MCP server that exposes character graph
// navigation as tools for LLM agents. An agent opens a work, moves the
// focus, expands neighbourhoods and reads back the laid-out view, over
// stdio transport.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/latebit/castnav/internal/config"
	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/logging"
	"github.com/latebit/castnav/internal/markdown"
	"github.com/latebit/castnav/internal/metrics"
	"github.com/latebit/castnav/internal/navigation"
	"github.com/latebit/castnav/internal/session"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/works"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const settleSteps = 2000

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file")
	worksDir := flag.String("works", "", "works directory (overrides config)")
	expansion := flag.String("expansion", "", "expansion mode: cumulative, union or neighbors")
	logFile := flag.String("log-file", "", "log file (default stderr)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *worksDir, *expansion, *logFile, *metricsAddr)

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	lib, err := works.Open(cfg.WorksDir)
	if err != nil {
		logger.Error("open works", "error", err)
		os.Exit(1)
	}

	reg := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, reg.Handler()); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHandler(ctx, lib, cfg, logger, reg)
	defer h.closeAll()

	s := server.NewMCPServer("castnav-mcp", "0.1.0")
	s.AddTool(worksTool(), h.listWorks)
	s.AddTool(openTool(), h.open)
	s.AddTool(focusTool(), h.focus)
	s.AddTool(expandTool(), h.expand)
	s.AddTool(backTool(), h.back)
	s.AddTool(resetTool(), h.reset)
	s.AddTool(viewTool(), h.view)
	s.AddTool(detailsTool(), h.details)
	s.AddTool(closeTool(), h.closeSession)

	if err := server.ServeStdio(s); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, worksDir, expansion, logFile, metricsAddr string) {
	if worksDir != "" {
		cfg.WorksDir = worksDir
	}
	if expansion != "" {
		cfg.Expansion = expansion
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
}

// openLogger never writes to stdout, which carries the MCP stream.
func openLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr), func() {}, nil
	}
	f, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(cfg.LogFormat, cfg.LogLevel, f), func() { _ = f.Close() }, nil
}

// openSession is a session running on its own loop goroutine.
type openSession struct {
	work   works.Work
	loop   *session.Loop
	cancel context.CancelFunc
}

type handler struct {
	ctx     context.Context
	lib     *works.Library
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Registry

	mu       sync.Mutex
	sessions map[string]*openSession
	current  string
}

func newHandler(ctx context.Context, lib *works.Library, cfg *config.Config, logger *slog.Logger, reg *metrics.Registry) *handler {
	return &handler{
		ctx:      ctx,
		lib:      lib,
		cfg:      cfg,
		log:      logger,
		metrics:  reg,
		sessions: make(map[string]*openSession),
	}
}

// lookup returns the named session, or the most recently opened one when
// id is empty.
func (h *handler) lookup(id string) (*openSession, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id == "" {
		id = h.current
	}
	if id == "" {
		return nil, "", errors.New("no open session; call castnav_open first")
	}
	sess, ok := h.sessions[id]
	if !ok {
		return nil, "", fmt.Errorf("unknown session %q", id)
	}
	return sess, id, nil
}

func (h *handler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		s.cancel()
		<-s.loop.Stopped()
		delete(h.sessions, id)
	}
}

// Tool definitions.

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session",
		mcp.Description("session id returned by castnav_open (default: the most recent session)"),
	)
}

func worksTool() mcp.Tool {
	return mcp.NewTool("castnav_works",
		mcp.WithDescription(
			"List the literary works whose character graphs can be explored. "+
				"Optionally filter by a case-insensitive query over title, author and description.",
		),
		mcp.WithString("query", mcp.Description("search text")),
	)
}

func openTool() mcp.Tool {
	return mcp.NewTool("castnav_open",
		mcp.WithDescription(
			"Open a work's character graph focused on its protagonist. "+
				"Returns a session id and the initial view.",
		),
		mcp.WithString("work", mcp.Required(), mcp.Description("work id from castnav_works")),
		mcp.WithString("focus", mcp.Description("character id to focus instead of the protagonist")),
		mcp.WithString("expansion", mcp.Description("expansion mode: cumulative, union or neighbors")),
	)
}

func focusTool() mcp.Tool {
	return mcp.NewTool("castnav_focus",
		mcp.WithDescription("Make a character the focus. The previous focus is pushed onto the back history."),
		mcp.WithString("node", mcp.Required(), mcp.Description("character id")),
		sessionParam(),
	)
}

func expandTool() mcp.Tool {
	return mcp.NewTool("castnav_expand",
		mcp.WithDescription(
			"Expand or collapse a character, showing or hiding its direct relationships. "+
				"The focus cannot be collapsed.",
		),
		mcp.WithString("node", mcp.Required(), mcp.Description("character id")),
		sessionParam(),
	)
}

func backTool() mcp.Tool {
	return mcp.NewTool("castnav_back",
		mcp.WithDescription("Return to the previously focused character."),
		sessionParam(),
	)
}

func resetTool() mcp.Tool {
	return mcp.NewTool("castnav_reset",
		mcp.WithDescription("Return to the protagonist with nothing else expanded and an empty history."),
		sessionParam(),
	)
}

func viewTool() mcp.Tool {
	return mcp.NewTool("castnav_view",
		mcp.WithDescription(
			"Settle the layout and return the visible characters with positions, "+
				"and the visible relationships with their classification.",
		),
		mcp.WithBoolean("json", mcp.Description("return the frame as JSON")),
		sessionParam(),
	)
}

func detailsTool() mcp.Tool {
	return mcp.NewTool("castnav_details",
		mcp.WithDescription("Describe one character: label, role, description and relationships."),
		mcp.WithString("node", mcp.Required(), mcp.Description("character id")),
		sessionParam(),
	)
}

func closeTool() mcp.Tool {
	return mcp.NewTool("castnav_close",
		mcp.WithDescription("Close a session."),
		sessionParam(),
	)
}

// Tool handlers.
// Handler signatures are dictated by mcp-go's ToolHandlerFunc type.

func (h *handler) listWorks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	list, err := h.lib.Search(req.GetString("query", ""))
	if err != nil && len(list) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("list works failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatWorks(list)), nil
}

func (h *handler) open(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	workID, err := req.RequireString("work")
	if err != nil {
		return mcp.NewToolResultError("work is required"), nil
	}
	modeName := req.GetString("expansion", h.cfg.Expansion)
	mode, err := navigation.ParseMode(modeName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, g, err := h.lib.Load(workID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open failed: %v", err)), nil
	}
	s, err := session.New(g, session.Options{
		Work:        w.ID,
		Protagonist: w.Protagonist,
		Mode:        mode,
		Params:      h.cfg.Physics,
		Logger:      h.log,
		Metrics:     h.metrics,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open failed: %v", err)), nil
	}
	if focus := req.GetString("focus", ""); focus != "" {
		if err := s.SetFocus(focus); err != nil {
			s.Close()
			return mcp.NewToolResultError(fmt.Sprintf("open failed: %v", err)), nil
		}
	}

	loopCtx, cancel := context.WithCancel(h.ctx)
	loop := session.NewLoop(s, h.cfg.TickInterval, nil)
	go func() {
		_ = loop.Run(loopCtx)
		s.Close()
	}()

	h.mu.Lock()
	h.sessions[s.ID()] = &openSession{work: w, loop: loop, cancel: cancel}
	h.current = s.ID()
	h.mu.Unlock()

	var text string
	err = loop.Do(ctx, func(s *session.Session) error {
		s.Settle(settleSteps)
		text = fmt.Sprintf("session: %s\nwork: %s (%s)\n\n%s", s.ID(), w.Title, w.ID, formatFrame(s.Frame(), s.Graph()))
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

// mutate runs op on the requested session and answers with the settled view.
func (h *handler) mutate(ctx context.Context, req mcp.CallToolRequest, op func(*session.Session) error) *mcp.CallToolResult { //nolint:gocritic // request passed through from mcp-go
	sess, _, err := h.lookup(req.GetString("session", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	var text string
	err = sess.loop.Do(ctx, func(s *session.Session) error {
		if err := op(s); err != nil {
			return err
		}
		s.Settle(settleSteps)
		text = formatFrame(s.Frame(), s.Graph())
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(text)
}

func (h *handler) focus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	node, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError("node is required"), nil
	}
	return h.mutate(ctx, req, func(s *session.Session) error { return s.SetFocus(node) }), nil
}

func (h *handler) expand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	node, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError("node is required"), nil
	}
	return h.mutate(ctx, req, func(s *session.Session) error {
		_, err := s.ToggleExpand(node)
		return err
	}), nil
}

func (h *handler) back(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	return h.mutate(ctx, req, func(s *session.Session) error {
		if !s.GoBack() {
			return errors.New("history is empty")
		}
		return nil
	}), nil
}

func (h *handler) reset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	return h.mutate(ctx, req, func(s *session.Session) error {
		s.Reset()
		return nil
	}), nil
}

func (h *handler) view(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	if !req.GetBool("json", false) {
		return h.mutate(ctx, req, func(*session.Session) error { return nil }), nil
	}
	sess, _, err := h.lookup(req.GetString("session", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var data []byte
	err = sess.loop.Do(ctx, func(s *session.Session) error {
		s.Settle(settleSteps)
		var err error
		data, err = json.MarshalIndent(s.Frame(), "", "  ")
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handler) details(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	node, err := req.RequireString("node")
	if err != nil {
		return mcp.NewToolResultError("node is required"), nil
	}
	sess, _, err := h.lookup(req.GetString("session", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var text string
	err = sess.loop.Do(ctx, func(s *session.Session) error {
		if err := s.Select(node); err != nil {
			return err
		}
		n, _ := s.Details()
		text = formatDetails(n, s.Graph())
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (h *handler) closeSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	sess, id, err := h.lookup(req.GetString("session", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess.cancel()
	<-sess.loop.Stopped()

	h.mu.Lock()
	delete(h.sessions, id)
	if h.current == id {
		h.current = ""
	}
	h.mu.Unlock()
	return mcp.NewToolResultText("closed " + id), nil
}

// formatWorks renders the work list as plain text for LLM consumption.
func formatWorks(list []works.Work) string {
	if len(list) == 0 {
		return "No works found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d works:\n", len(list))
	for _, w := range list {
		fmt.Fprintf(&b, "  %-20s %q", w.ID, w.Title)
		if w.Author != "" {
			fmt.Fprintf(&b, " by %s", w.Author)
		}
		if w.Year != "" {
			fmt.Fprintf(&b, " (%s)", w.Year)
		}
		fmt.Fprintf(&b, "  %d characters, %d relationships\n", w.Nodes, w.Edges)
	}
	return b.String()
}

// formatFrame renders a frame as plain text for LLM consumption.
func formatFrame(f view.Frame, g *graph.Graph) string {
	var b strings.Builder
	focus := f.Stats.Focus
	if n, ok := g.GetNode(focus); ok {
		focus = fmt.Sprintf("%s (%s)", n.Label, n.ID)
	}
	fmt.Fprintf(&b, "Focus: %s | expanded %d | visible %d | relationships %d\n",
		focus, f.Stats.Expanded, f.Stats.Visible, f.Stats.Edges)

	if len(f.Nodes) > 0 {
		b.WriteString("\nCharacters:\n")
		for _, n := range f.Nodes {
			fmt.Fprintf(&b, "  [%-11s] %-20s %q", n.Class, n.ID, n.Label)
			if n.Role != "" {
				fmt.Fprintf(&b, " %s", n.Role)
			}
			fmt.Fprintf(&b, "  (%.0f, %.0f)\n", n.X, n.Y)
		}
	}
	if len(f.Edges) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, e := range f.Edges {
			label := e.Label
			if label == "" {
				label = "related"
			}
			fmt.Fprintf(&b, "  %s -[%s]- %s  %s\n", e.Source, label, e.Target, e.Class)
		}
	}
	return b.String()
}

// formatDetails renders one character and its relationships.
func formatDetails(n graph.Node, g *graph.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", n.Label, n.ID)
	if n.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", n.Role)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", markdown.PlainText(n.Description))
	}
	edges := g.EdgesOf(n.ID)
	if len(edges) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, e := range edges {
			other, _ := g.GetNode(e.Other(n.ID))
			label := e.Label
			if label == "" {
				label = "related"
			}
			fmt.Fprintf(&b, "  %s: %s (%s)\n", label, other.Label, other.ID)
		}
	}
	return b.String()
}
