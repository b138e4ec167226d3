// Command castnav inspects a works library from the shell: it lists works,
// prints the settled view for a focus and checks work files.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/latebit/castnav/internal/config"
	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/logging"
	"github.com/latebit/castnav/internal/navigation"
	"github.com/latebit/castnav/internal/session"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/works"
)

const settleSteps = 2000

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "works":
		err = worksMain(os.Args[2:], os.Stdout)
	case "view":
		err = viewMain(os.Args[2:], os.Stdout)
	case "validate":
		err = validateMain(os.Args[2:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: castnav works [-q QUERY]\n")
	fmt.Fprintf(os.Stderr, "       castnav view [-focus ID] [-expand ID,ID] [-mode MODE] [-json] [-events] WORK\n")
	fmt.Fprintf(os.Stderr, "       castnav validate WORK|FILE...\n\n")
	fmt.Fprintf(os.Stderr, "Every command accepts -config FILE and -works DIR.\n")
}

// commonFlags registers the flags shared by every subcommand and returns
// a loader for the resulting configuration.
func commonFlags(fs *flag.FlagSet) func() (*config.Config, error) {
	configPath := fs.String("config", config.DefaultPath(), "config file")
	worksDir := fs.String("works", "", "works directory (overrides config)")
	return func() (*config.Config, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		if *worksDir != "" {
			cfg.WorksDir = *worksDir
		}
		return cfg, nil
	}
}

func openLibrary(cfg *config.Config) (*works.Library, error) {
	return works.Open(cfg.WorksDir)
}

func worksMain(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("works", flag.ExitOnError)
	load := commonFlags(fs)
	query := fs.String("q", "", "filter by title, author or description")
	_ = fs.Parse(args)

	cfg, err := load()
	if err != nil {
		return err
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	list, err := lib.Search(*query)
	if err != nil {
		// Broken files are reported but do not hide the good ones.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	printWorks(w, list)
	return nil
}

func printWorks(w io.Writer, list []works.Work) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No works found.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "AUTHOR", "YEAR", "CHARACTERS", "RELATIONSHIPS")
	for _, wk := range list {
		t.Row(wk.ID, wk.Title, wk.Author, wk.Year, fmt.Sprint(wk.Nodes), fmt.Sprint(wk.Edges))
	}
	fmt.Fprintln(w, t.String())
}

// viewOptions is what the view subcommand does to a freshly opened session
// before printing it.
type viewOptions struct {
	Focus  string
	Expand []string
	Mode   string
	JSON   bool
	Events bool
}

func viewMain(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	load := commonFlags(fs)
	focus := fs.String("focus", "", "character to focus instead of the protagonist")
	expand := fs.String("expand", "", "comma-separated characters to expand")
	mode := fs.String("mode", "", "expansion mode: cumulative, union or neighbors")
	asJSON := fs.Bool("json", false, "print the frame as JSON")
	events := fs.Bool("events", false, "print the events raised while building the view")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: castnav view [-focus ID] [-expand ID,ID] [-mode MODE] [-json] [-events] WORK\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := load()
	if err != nil {
		return err
	}
	lib, err := openLibrary(cfg)
	if err != nil {
		return err
	}
	opts := viewOptions{Focus: *focus, Mode: *mode, JSON: *asJSON, Events: *events}
	if *expand != "" {
		opts.Expand = strings.Split(*expand, ",")
	}
	return runView(w, lib, cfg, fs.Arg(0), opts)
}

func runView(w io.Writer, lib *works.Library, cfg *config.Config, workID string, opts viewOptions) error {
	if opts.Mode == "" {
		opts.Mode = cfg.Expansion
	}
	mode, err := navigation.ParseMode(opts.Mode)
	if err != nil {
		return err
	}
	wk, g, err := lib.Load(workID)
	if err != nil {
		return err
	}
	s, err := session.New(g, session.Options{
		Work:        wk.ID,
		Protagonist: wk.Protagonist,
		Mode:        mode,
		Params:      cfg.Physics,
		Logger:      logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	var events []view.Event
	s.Subscribe(func(e view.Event) { events = append(events, e) })

	if opts.Focus != "" {
		if err := s.SetFocus(opts.Focus); err != nil {
			return err
		}
	}
	for _, id := range opts.Expand {
		id = strings.TrimSpace(id)
		if id == "" || s.IsExpanded(id) {
			continue
		}
		if _, err := s.ToggleExpand(id); err != nil {
			return fmt.Errorf("expand %q: %w", id, err)
		}
	}
	s.Settle(settleSteps)
	f := s.Frame()

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
	printFrame(w, wk, f, g)
	if opts.Events {
		fmt.Fprintln(w, "\nEvents:")
		for _, e := range events {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

func printFrame(w io.Writer, wk works.Work, f view.Frame, g *graph.Graph) {
	focus := f.Stats.Focus
	if n, ok := g.GetNode(focus); ok {
		focus = n.Label
	}
	fmt.Fprintf(w, "%s: focus %s, expanded %d, visible %d, relationships %d\n",
		wk.Title, focus, f.Stats.Expanded, f.Stats.Visible, f.Stats.Edges)

	nodes := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "LABEL", "ROLE", "CLASS", "X", "Y")
	for _, n := range f.Nodes {
		nodes.Row(n.ID, n.Label, n.Role, n.Class, fmt.Sprintf("%.1f", n.X), fmt.Sprintf("%.1f", n.Y))
	}
	fmt.Fprintln(w, nodes.String())

	if len(f.Edges) == 0 {
		return
	}
	edges := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SOURCE", "TARGET", "LABEL", "CLASS")
	for _, e := range f.Edges {
		edges.Row(e.Source, e.Target, e.Label, e.Class.String())
	}
	fmt.Fprintln(w, edges.String())
}

func validateMain(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	load := commonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: castnav validate WORK|FILE...\n\n")
		fmt.Fprintf(os.Stderr, "Check that work files parse and that their layout settles.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	cfg, err := load()
	if err != nil {
		return err
	}
	var lib *works.Library
	if l, err := openLibrary(cfg); err == nil {
		lib = l
	}

	var errs []error
	for _, arg := range fs.Args() {
		if err := runValidate(w, lib, cfg, arg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runValidate checks one work, given either as a file path or as an id in
// lib, and reports what it found.
func runValidate(w io.Writer, lib *works.Library, cfg *config.Config, arg string) error {
	var (
		wk  works.Work
		g   *graph.Graph
		err error
	)
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		wk, g, err = works.ReadFile(arg)
	} else if lib != nil {
		wk, g, err = lib.Load(arg)
	} else {
		err = fmt.Errorf("%w: %q", works.ErrNotFound, arg)
	}
	if err != nil {
		fmt.Fprintf(w, "FAIL %s: %v\n", arg, err)
		return err
	}

	var isolated []string
	for _, n := range g.Nodes() {
		if g.Degree(n.ID) == 0 {
			isolated = append(isolated, n.ID)
		}
	}

	s, err := session.New(g, session.Options{
		Work:        wk.ID,
		Protagonist: wk.Protagonist,
		Params:      cfg.Physics,
	})
	if err != nil {
		fmt.Fprintf(w, "FAIL %s: %v\n", arg, err)
		return err
	}
	defer s.Close()
	steps := s.Settle(settleSteps)

	fmt.Fprintf(w, "ok   %s: %q, %d characters, %d relationships, protagonist %s\n",
		wk.ID, wk.Title, g.NodeCount(), g.EdgeCount(), s.Protagonist())
	if len(isolated) > 0 {
		fmt.Fprintf(w, "     warning: %d characters without relationships: %s\n", len(isolated), strings.Join(isolated, ", "))
	}
	if !s.Settled() {
		fmt.Fprintf(w, "     warning: layout did not settle within %d ticks\n", steps)
	} else {
		fmt.Fprintf(w, "     layout settled in %d ticks\n", steps)
	}
	return nil
}
