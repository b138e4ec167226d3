// Package works reads the library of literary works. Each work is one file
// in a directory, named after the work id, holding the work metadata and
// its character graph:
//
//	{
//	  "id": "augustus", "title": "Augustus", "author": "John Williams",
//	  "year": "1972", "coverColor": "#8B4513",
//	  "nodes": [{"id": "octavius", "data": {"label": "Octavius", "role": "emperor"}}],
//	  "edges": [{"id": "e0", "source": "octavius", "target": "livia", "label": "wife"}]
//	}
//
// JSON, YAML (.yaml, .yml) and TOML files with the same field names are
// accepted.
package works

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/latebit/castnav/internal/graph"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no work has the requested id.
var ErrNotFound = errors.New("work not found")

// Extensions lists the accepted work file extensions in lookup order.
var Extensions = []string{".json", ".yaml", ".yml", ".toml"}

var validate = validator.New()

// Work is the display metadata of a work.
type Work struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Year        string `json:"year,omitempty"`
	Author      string `json:"author,omitempty"`
	CoverColor  string `json:"coverColor,omitempty"`
	Protagonist string `json:"protagonist,omitempty"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
}

type record struct {
	ID          string       `json:"id" yaml:"id" toml:"id"`
	Title       string       `json:"title" yaml:"title" toml:"title"`
	Category    string       `json:"category" yaml:"category" toml:"category"`
	Description string       `json:"description" yaml:"description" toml:"description"`
	Year        string       `json:"year" yaml:"year" toml:"year"`
	Author      string       `json:"author" yaml:"author" toml:"author"`
	CoverColor  string       `json:"coverColor" yaml:"coverColor" toml:"coverColor"`
	Protagonist string       `json:"protagonist" yaml:"protagonist" toml:"protagonist"`
	Nodes       []nodeRecord `json:"nodes" yaml:"nodes" toml:"nodes"`
	Edges       []edgeRecord `json:"edges" yaml:"edges" toml:"edges"`
}

type nodeData struct {
	Label       string `json:"label" yaml:"label" toml:"label"`
	Role        string `json:"role" yaml:"role" toml:"role"`
	Avatar      string `json:"avatar" yaml:"avatar" toml:"avatar"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// nodeRecord accepts both the nested {id, data: {...}} shape and a flat one.
type nodeRecord struct {
	ID   string   `json:"id" yaml:"id" toml:"id"`
	Type string   `json:"type" yaml:"type" toml:"type"`
	Data nodeData `json:"data" yaml:"data" toml:"data"`
	nodeData `yaml:",inline"`
}

type edgeRecord struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Source      string `json:"source" yaml:"source" toml:"source"`
	Target      string `json:"target" yaml:"target" toml:"target"`
	Label       string `json:"label" yaml:"label" toml:"label"`
	Description string `json:"description" yaml:"description" toml:"description"`
	Data        struct {
		Label       string `json:"label" yaml:"label" toml:"label"`
		Description string `json:"description" yaml:"description" toml:"description"`
	} `json:"data" yaml:"data" toml:"data"`
}

func (n nodeRecord) node() graph.Node {
	d := n.Data
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return graph.Node{
		ID:          n.ID,
		Label:       pick(d.Label, n.nodeData.Label),
		Role:        pick(d.Role, n.nodeData.Role),
		Avatar:      pick(d.Avatar, n.nodeData.Avatar),
		Description: pick(d.Description, n.nodeData.Description),
	}
}

func (e edgeRecord) edge() graph.Edge {
	out := graph.Edge{Source: e.Source, Target: e.Target, Label: e.Label, Description: e.Description}
	if out.Label == "" {
		out.Label = e.Data.Label
	}
	if out.Description == "" {
		out.Description = e.Data.Description
	}
	return out
}

// Parse decodes a work file. The format is chosen by the extension of
// name, and name's base is used as the id when the file has none.
func Parse(name string, data []byte) (Work, *graph.Graph, error) {
	var rec record
	var err error
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		err = json.Unmarshal(data, &rec)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rec)
	case ".toml":
		_, err = toml.Decode(string(data), &rec)
	default:
		return Work{}, nil, fmt.Errorf("parse work %q: unsupported extension %q", name, ext)
	}
	if err != nil {
		return Work{}, nil, fmt.Errorf("parse work %q: %w", name, err)
	}

	nodes := make([]graph.Node, len(rec.Nodes))
	for i, n := range rec.Nodes {
		nodes[i] = n.node()
	}
	edges := make([]graph.Edge, len(rec.Edges))
	for i, e := range rec.Edges {
		edges[i] = e.edge()
	}
	g, err := graph.New(nodes, edges)
	if err != nil {
		return Work{}, nil, fmt.Errorf("parse work %q: %w", name, err)
	}

	w := Work{
		ID:          rec.ID,
		Title:       rec.Title,
		Category:    rec.Category,
		Description: rec.Description,
		Year:        rec.Year,
		Author:      rec.Author,
		CoverColor:  rec.CoverColor,
		Protagonist: rec.Protagonist,
		Nodes:       g.NodeCount(),
		Edges:       g.EdgeCount(),
	}
	if w.ID == "" {
		w.ID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	if w.Title == "" {
		w.Title = w.ID
	}
	if w.Protagonist != "" {
		if err := g.Check(w.Protagonist); err != nil {
			return Work{}, nil, fmt.Errorf("parse work %q: protagonist: %w", name, err)
		}
	}
	return w, g, nil
}

// ReadFile reads and parses one work file.
func ReadFile(path string) (Work, *graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Work{}, nil, fmt.Errorf("read work %q: %w", path, err)
	}
	return Parse(path, data)
}

type entry struct {
	modTime time.Time
	size    int64
	work    Work
	graph   *graph.Graph
}

// Library is a directory of work files. Parsed files are cached until their
// modification time or size changes. A Library is safe for concurrent use.
type Library struct {
	dir string

	mu    sync.Mutex
	cache map[string]entry
}

// Open returns the library rooted at dir.
func Open(dir string) (*Library, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open works directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("open works directory: %q is not a directory", dir)
	}
	return &Library{dir: dir, cache: make(map[string]entry)}, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }

func (l *Library) read(path string) (Work, *graph.Graph, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Work{}, nil, fmt.Errorf("read work %q: %w", path, err)
	}
	l.mu.Lock()
	e, ok := l.cache[path]
	l.mu.Unlock()
	if ok && e.modTime.Equal(fi.ModTime()) && e.size == fi.Size() {
		return e.work, e.graph, nil
	}

	w, g, err := ReadFile(path)
	if err != nil {
		return Work{}, nil, err
	}
	l.mu.Lock()
	l.cache[path] = entry{modTime: fi.ModTime(), size: fi.Size(), work: w, graph: g}
	l.mu.Unlock()
	return w, g, nil
}

func (l *Library) files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range Extensions {
			if ext == want {
				out = append(out, filepath.Join(l.dir, e.Name()))
				break
			}
		}
	}
	return out, nil
}

// List returns the metadata of every work, sorted by id. Files that fail to
// parse are skipped and reported together in the returned error, alongside
// the works that did parse.
func (l *Library) List() ([]Work, error) {
	paths, err := l.files()
	if err != nil {
		return nil, err
	}
	var works []Work
	var errs []error
	seen := make(map[string]bool)
	for _, p := range paths {
		w, _, err := l.read(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		works = append(works, w)
	}
	sort.Slice(works, func(i, j int) bool { return works[i].ID < works[j].ID })
	return works, errors.Join(errs...)
}

// Get returns the metadata of the work with the given id.
func (l *Library) Get(id string) (Work, error) {
	w, _, err := l.Load(id)
	return w, err
}

// Load returns a work and its graph. Files named <id>.<ext> are tried
// first; otherwise every file is scanned for a matching id.
func (l *Library) Load(id string) (Work, *graph.Graph, error) {
	if err := validate.Var(id, "required,max=200,excludesall=/\\"); err != nil || strings.Contains(id, "..") {
		return Work{}, nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	for _, ext := range Extensions {
		p := filepath.Join(l.dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return l.read(p)
		}
	}
	paths, err := l.files()
	if err != nil {
		return Work{}, nil, err
	}
	for _, p := range paths {
		w, g, err := l.read(p)
		if err == nil && w.ID == id {
			return w, g, nil
		}
	}
	return Work{}, nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Search returns the works whose title, author or description contains
// query, ignoring case. An empty query matches everything.
func (l *Library) Search(query string) ([]Work, error) {
	all, err := l.List()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, err
	}
	var out []Work
	for _, w := range all {
		if strings.Contains(strings.ToLower(w.Title), q) ||
			strings.Contains(strings.ToLower(w.Author), q) ||
			strings.Contains(strings.ToLower(w.Description), q) {
			out = append(out, w)
		}
	}
	return out, err
}
