package navigation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/visibility"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type pinCall struct {
	id   string
	x, y float64
	pin  bool
}

type recordingPinner struct {
	calls []pinCall
	err   error
}

func (r *recordingPinner) Pin(id string, x, y float64) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, pinCall{id: id, x: x, y: y, pin: true})
	return nil
}

func (r *recordingPinner) Unpin(id string) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, pinCall{id: id})
	return nil
}

func chain(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		[]graph.Edge{
			{Source: "A", Target: "B"},
			{Source: "B", Target: "C"},
			{Source: "C", Target: "D"},
		},
	)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func newNav(t *testing.T, mode Mode) *Navigator {
	t.Helper()
	n, err := New(chain(t), Options{Mode: mode})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNewDefaultsToFirstNode(t *testing.T) {
	n := newNav(t, ModeCumulative)
	if n.Focus() != "A" || n.Protagonist() != "A" {
		t.Errorf("focus = %q, protagonist = %q, want A", n.Focus(), n.Protagonist())
	}
	if !reflect.DeepEqual(n.Expanded(), visibility.NewSet("A")) {
		t.Errorf("expanded = %v, want {A}", n.Expanded().Sorted())
	}
	if n.CanReset() {
		t.Error("CanReset() = true on fresh navigator")
	}
}

func TestNewErrors(t *testing.T) {
	empty, _ := graph.New(nil, nil)
	if _, err := New(empty, Options{}); !errors.Is(err, graph.ErrEmptyGraph) {
		t.Errorf("empty graph err = %v, want ErrEmptyGraph", err)
	}
	if _, err := New(chain(t), Options{Protagonist: "Z"}); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("bad protagonist err = %v, want ErrInvalidReference", err)
	}
	n, err := New(chain(t), Options{Protagonist: "C"})
	if err != nil || n.Focus() != "C" {
		t.Errorf("protagonist override: focus = %q, err = %v", n.Focus(), err)
	}
}

func TestScenario(t *testing.T) {
	g := chain(t)
	n, err := New(g, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := n.ToggleExpand("B"); err != nil {
		t.Fatalf("ToggleExpand(B): %v", err)
	}
	vis := visibility.Resolve(g, n.Focus(), n.Expanded())
	if got := vis.IDs(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("visible after expand = %v, want [A B C]", got)
	}

	if err := n.SetFocus("C"); err != nil {
		t.Fatalf("SetFocus(C): %v", err)
	}
	if got := n.History(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("history = %v, want [A]", got)
	}
	if !n.IsExpanded("C") {
		t.Error("C not expanded after SetFocus")
	}
	vis = visibility.Resolve(g, n.Focus(), n.Expanded())
	if got := vis.IDs(); !slices.Equal(got, []string{"B", "C", "D"}) {
		t.Errorf("visible after focus = %v, want [B C D]", got)
	}
	if n.Source() != "A" {
		t.Errorf("source = %q, want A", n.Source())
	}
}

func TestSetFocusModes(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeCumulative, []string{"C"}},
		{ModeUnion, []string{"A", "B", "C"}},
		{ModeNeighbors, []string{"C"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			n := newNav(t, tt.mode)
			_, _ = n.ToggleExpand("B")
			if err := n.SetFocus("C"); err != nil {
				t.Fatalf("SetFocus: %v", err)
			}
			if got := n.Expanded().Sorted(); !slices.Equal(got, tt.want) {
				t.Errorf("expanded = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetFocusSameIsNoop(t *testing.T) {
	n := newNav(t, ModeCumulative)
	before := n.State()
	if err := n.SetFocus("A"); err != nil {
		t.Fatalf("SetFocus(A): %v", err)
	}
	if !reflect.DeepEqual(n.State(), before) {
		t.Errorf("state changed: %+v -> %+v", before, n.State())
	}
}

func TestInvalidReferenceLeavesStateUnchanged(t *testing.T) {
	n := newNav(t, ModeCumulative)
	_, _ = n.ToggleExpand("B")
	_ = n.SetFocus("C")
	before := n.State()

	if err := n.SetFocus("Z"); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("SetFocus(Z) err = %v", err)
	}
	if _, err := n.ToggleExpand("Z"); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("ToggleExpand(Z) err = %v", err)
	}
	if err := n.PinNode("Z", 1, 2); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("PinNode(Z) err = %v", err)
	}
	if err := n.UnpinNode("Z"); !errors.Is(err, graph.ErrInvalidReference) {
		t.Errorf("UnpinNode(Z) err = %v", err)
	}
	if !reflect.DeepEqual(n.State(), before) {
		t.Errorf("state changed: %+v -> %+v", before, n.State())
	}
}

func TestToggleExpand(t *testing.T) {
	n := newNav(t, ModeCumulative)

	on, err := n.ToggleExpand("B")
	if err != nil || !on {
		t.Fatalf("ToggleExpand(B) = %v, %v, want true", on, err)
	}
	if !n.CanReset() {
		t.Error("CanReset() = false with two expanded nodes")
	}
	on, err = n.ToggleExpand("B")
	if err != nil || on {
		t.Fatalf("second ToggleExpand(B) = %v, %v, want false", on, err)
	}

	before := n.State()
	on, err = n.ToggleExpand("A")
	if err != nil || !on {
		t.Errorf("ToggleExpand(focus) = %v, %v, want true, nil", on, err)
	}
	if !reflect.DeepEqual(n.State(), before) {
		t.Error("ToggleExpand(focus) changed state")
	}
}

func TestToggleExpandNeighborsMode(t *testing.T) {
	n := newNav(t, ModeNeighbors)
	before := n.State()
	if _, err := n.ToggleExpand("B"); !errors.Is(err, ErrExpansionDisabled) {
		t.Errorf("err = %v, want ErrExpansionDisabled", err)
	}
	if !reflect.DeepEqual(n.State(), before) {
		t.Error("state changed")
	}
}

func TestGoBack(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		n := newNav(t, ModeCumulative)
		before := n.State()
		if n.GoBack() {
			t.Error("GoBack() = true on empty history")
		}
		if !reflect.DeepEqual(n.State(), before) {
			t.Error("state changed")
		}
	})

	t.Run("restores previous focus", func(t *testing.T) {
		n := newNav(t, ModeCumulative)
		_ = n.SetFocus("B")
		_ = n.SetFocus("C")
		if !n.GoBack() {
			t.Fatal("GoBack() = false")
		}
		if n.Focus() != "B" {
			t.Errorf("focus = %q, want B", n.Focus())
		}
		if got := n.History(); !slices.Equal(got, []string{"A"}) {
			t.Errorf("history = %v, want [A]", got)
		}
		if n.Source() != "C" {
			t.Errorf("source = %q, want C", n.Source())
		}
		if got := n.Expanded().Sorted(); !slices.Equal(got, []string{"B", "C"}) {
			t.Errorf("expanded = %v, want [B C]", got)
		}
	})

	t.Run("neighbors mode", func(t *testing.T) {
		n := newNav(t, ModeNeighbors)
		_ = n.SetFocus("B")
		n.GoBack()
		if got := n.Expanded().Sorted(); !slices.Equal(got, []string{"A"}) {
			t.Errorf("expanded = %v, want [A]", got)
		}
	})
}

func TestReset(t *testing.T) {
	n := newNav(t, ModeUnion)
	_ = n.SetFocus("B")
	_ = n.SetFocus("D")
	n.Reset()

	want := State{Focus: "A", Expanded: visibility.NewSet("A")}
	got := n.State()
	if got.Focus != want.Focus || !reflect.DeepEqual(got.Expanded, want.Expanded) || len(got.History) != 0 || got.Source != "" {
		t.Errorf("state after reset = %+v, want %+v", got, want)
	}
}

func TestDrag(t *testing.T) {
	pins := &recordingPinner{}
	n, err := New(chain(t), Options{Pins: pins})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := n.DragTo("B", 1, 1); err == nil {
		t.Error("DragTo before BeginDrag succeeded")
	}
	if err := n.BeginDrag("B", 10, 20); err != nil {
		t.Fatalf("BeginDrag: %v", err)
	}
	if !n.IsDragging("B") || !n.Dragging() {
		t.Error("B not dragging")
	}
	if err := n.DragTo("B", 30, 40); err != nil {
		t.Fatalf("DragTo: %v", err)
	}
	if err := n.EndDrag("B"); err != nil {
		t.Fatalf("EndDrag: %v", err)
	}
	if n.Dragging() {
		t.Error("still dragging after EndDrag")
	}

	want := []pinCall{
		{id: "B", x: 10, y: 20, pin: true},
		{id: "B", x: 30, y: 40, pin: true},
		{id: "B"},
	}
	if !reflect.DeepEqual(pins.calls, want) {
		t.Errorf("pin calls = %+v, want %+v", pins.calls, want)
	}
}

func TestBeginDragPinFailure(t *testing.T) {
	pins := &recordingPinner{err: errors.New("not tracked")}
	n, _ := New(chain(t), Options{Pins: pins})
	if err := n.BeginDrag("B", 0, 0); err == nil {
		t.Fatal("expected error")
	}
	if n.IsDragging("B") {
		t.Error("failed BeginDrag left B dragging")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeCumulative, false},
		{"cumulative", ModeCumulative, false},
		{"Union", ModeUnion, false},
		{"neighbours", ModeNeighbors, false},
		{"sideways", ModeCumulative, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// apply runs one encoded operation: op selects the operation and arg the
// node (including one id that is not in the graph).
func apply(n *Navigator, op, arg int) {
	ids := []string{"A", "B", "C", "D", "Z"}
	id := ids[arg%len(ids)]
	switch op % 4 {
	case 0:
		_ = n.SetFocus(id)
	case 1:
		_, _ = n.ToggleExpand(id)
	case 2:
		n.GoBack()
	case 3:
		n.Reset()
	}
}

func TestNavigationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	g := chain(t)
	for _, mode := range []Mode{ModeCumulative, ModeUnion, ModeNeighbors} {
		properties.Property(fmt.Sprintf("%s: focus stays expanded", mode), prop.ForAll(
			func(ops []int) bool {
				n, _ := New(g, Options{Mode: mode})
				for i := 0; i+1 < len(ops); i += 2 {
					apply(n, ops[i], ops[i+1])
					if !n.IsExpanded(n.Focus()) {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(0, 99)),
		))

		properties.Property(fmt.Sprintf("%s: toggling the focus is a no-op", mode), prop.ForAll(
			func(ops []int) bool {
				n, _ := New(g, Options{Mode: mode})
				for i := 0; i+1 < len(ops); i += 2 {
					apply(n, ops[i], ops[i+1])
				}
				before := n.State()
				_, _ = n.ToggleExpand(n.Focus())
				return reflect.DeepEqual(before, n.State())
			},
			gen.SliceOf(gen.IntRange(0, 99)),
		))
	}

	properties.TestingRun(t)
}

func TestCancelDrags(t *testing.T) {
	pins := &recordingPinner{}
	n, _ := New(chain(t), Options{Pins: pins})
	_ = n.BeginDrag("C", 0, 0)
	_ = n.BeginDrag("B", 0, 0)

	if got := n.CancelDrags(); !slices.Equal(got, []string{"B", "C"}) {
		t.Errorf("CancelDrags() = %v, want [B C]", got)
	}
	if n.Dragging() {
		t.Error("still dragging")
	}
	if len(pins.calls) != 2 {
		t.Errorf("CancelDrags touched the pin table: %+v", pins.calls)
	}
}
