package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/latebit/castnav/internal/config"
	"github.com/latebit/castnav/internal/navigation"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/works"
)

const hamlet = `id: hamlet
title: Hamlet
author: William Shakespeare
protagonist: hamlet
nodes:
  - id: hamlet
    label: Hamlet
    role: prince
  - id: gertrude
    label: Gertrude
  - id: claudius
    label: Claudius
  - id: yorick
    label: Yorick
edges:
  - source: hamlet
    target: gertrude
    label: mother
  - source: gertrude
    target: claudius
    label: husband
`

func newTestLibrary(t *testing.T) (*works.Library, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hamlet.yaml"), []byte(hamlet), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lib, err := works.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := config.Default()
	cfg.WorksDir = dir
	cfg.LogLevel = "error"
	cfg.Physics.Seed = 9
	return lib, cfg, dir
}

func TestPrintWorks(t *testing.T) {
	lib, _, _ := newTestLibrary(t)
	list, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var buf bytes.Buffer
	printWorks(&buf, list)
	for _, want := range []string{"TITLE", "hamlet", "Hamlet", "William Shakespeare"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	printWorks(&buf, nil)
	if buf.String() != "No works found.\n" {
		t.Errorf("empty list output = %q", buf.String())
	}
}

func TestRunView(t *testing.T) {
	lib, cfg, _ := newTestLibrary(t)
	var buf bytes.Buffer
	if err := runView(&buf, lib, cfg, "hamlet", viewOptions{Expand: []string{"gertrude"}, Events: true}); err != nil {
		t.Fatalf("runView: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Hamlet: focus Hamlet, expanded 2, visible 3, relationships 2",
		"from-source",
		"main-highlighted",
		"husband",
		"nodeInteracted(gertrude, expand)",
		"simulationSettled(",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "yorick") {
		t.Errorf("isolated character should not be visible:\n%s", out)
	}
}

func TestRunViewJSON(t *testing.T) {
	lib, cfg, _ := newTestLibrary(t)
	var buf bytes.Buffer
	if err := runView(&buf, lib, cfg, "hamlet", viewOptions{Focus: "claudius", JSON: true}); err != nil {
		t.Fatalf("runView: %v", err)
	}
	var f view.Frame
	if err := json.Unmarshal(buf.Bytes(), &f); err != nil {
		t.Fatalf("output is not a frame: %v", err)
	}
	if f.Stats.Focus != "claudius" || f.Stats.Visible != 2 || !f.Settled || !f.CanReset {
		t.Errorf("frame = %+v settled=%v canReset=%v", f.Stats, f.Settled, f.CanReset)
	}
}

func TestRunViewErrors(t *testing.T) {
	lib, cfg, _ := newTestLibrary(t)
	tests := []struct {
		name    string
		work    string
		opts    viewOptions
		wantErr string
	}{
		{"unknown work", "macbeth", viewOptions{}, "work not found"},
		{"bad focus", "hamlet", viewOptions{Focus: "ophelia"}, "invalid node reference"},
		{"bad mode", "hamlet", viewOptions{Mode: "radial"}, "unknown expansion mode"},
		{"neighbors expand", "hamlet", viewOptions{Mode: "neighbors", Expand: []string{"gertrude"}}, navigation.ErrExpansionDisabled.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := runView(&buf, lib, cfg, tt.work, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunValidate(t *testing.T) {
	lib, cfg, dir := newTestLibrary(t)

	var buf bytes.Buffer
	if err := runValidate(&buf, lib, cfg, "hamlet"); err != nil {
		t.Fatalf("runValidate: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ok   hamlet", "4 characters, 2 relationships", "protagonist hamlet", "without relationships: yorick", "layout settled in"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	bad := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(bad, []byte(`{"id": "broken", "nodes": [{"id": "a"}], "edges": [{"source": "a", "target": "z"}]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	buf.Reset()
	err := runValidate(&buf, lib, cfg, bad)
	if err == nil || !strings.HasPrefix(buf.String(), "FAIL ") {
		t.Errorf("broken file: err=%v output=%q", err, buf.String())
	}

	buf.Reset()
	err = runValidate(&buf, nil, cfg, "missing")
	if !errors.Is(err, works.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
