package viz

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/conlab/internal/engine"
	"github.com/san-kum/conlab/internal/storage"
)

type fakeSource struct {
	runs []storage.RunMetadata
}

func (f fakeSource) List() ([]storage.RunMetadata, error) { return f.runs, nil }

func (f fakeSource) LoadFormulas(id string) ([][2]string, error) {
	return [][2]string{{"C", "x * y"}, {"dC/dx", "y"}}, nil
}

func (f fakeSource) LoadTranscript(id string) ([]string, error) {
	return []string{"== " + id + " ==", "verify reference eX: MATCH (symbolic proof)"}, nil
}

func (f fakeSource) LoadSnippet(id string) (string, error) {
	return "", errors.New("snippet unavailable")
}

func newTestBrowser(t *testing.T) *browser {
	t.Helper()
	src := fakeSource{runs: []storage.RunMetadata{
		{ID: "colinear_1", Family: "colinear", Timestamp: time.Unix(2, 0), Verdicts: []engine.Verdict{{Subject: "a", Match: true}}},
		{ID: "ropedrum_1", Family: "ropedrum", Timestamp: time.Unix(1, 0)},
	}}
	b, err := newBrowser(src)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestBrowserNavigation(t *testing.T) {
	var m tea.Model = newTestBrowser(t)

	m = press(m, "j", "j")
	if got := m.(browser).cursor; got != 1 {
		t.Errorf("cursor should stop at last run, got %d", got)
	}

	m = press(m, "k", "enter")
	b := m.(browser)
	if b.state != stateDetail || b.pane != paneFormulas {
		t.Fatalf("expected formulas pane, got state %d pane %d", b.state, b.pane)
	}
	if len(b.lines) != 2 || b.lines[1] != "dC/dx = y" {
		t.Errorf("unexpected formula lines %v", b.lines)
	}
	if !strings.Contains(b.View(), "colinear_1") {
		t.Error("detail view should name the run")
	}

	m = press(m, "tab", "tab", "tab")
	b = m.(browser)
	if b.pane != paneSnippet || b.err == nil {
		t.Errorf("expected snippet pane with error, got pane %d err %v", b.pane, b.err)
	}

	m = press(m, "tab")
	if got := m.(browser).pane; got != paneFormulas {
		t.Errorf("panes should wrap around, got %d", got)
	}

	m = press(m, "esc")
	if got := m.(browser).state; got != stateList {
		t.Errorf("esc should return to the list, got state %d", got)
	}
}

func TestBrowserQuit(t *testing.T) {
	_, cmd := newTestBrowser(t).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestVerdictBar(t *testing.T) {
	vs := []engine.Verdict{{Match: true}, {Match: false}}
	if got := VerdictBar(vs, 10); !strings.Contains(got, "█████░░░░░") {
		t.Errorf("unexpected bar %q", got)
	}
}

func TestSparkline(t *testing.T) {
	got := Sparkline([]float64{0, 7, 0, 7}, 4)
	if !strings.Contains(got, "▁█▁█") {
		t.Errorf("unexpected sparkline %q", got)
	}
	if Sparkline(nil, 4) != "────" {
		t.Error("empty sparkline should be a rule")
	}
}

func TestTranscriptMarksNumericVerdicts(t *testing.T) {
	out := Transcript([]string{
		"verify a: MATCH (numeric at 3 points only, max rel diff 1.00e-12; not a proof)",
		"verify b: MISMATCH (symbolic proof)",
	})
	if !strings.Contains(out, "~ a: MATCH") {
		t.Errorf("numeric verdict should be marked as weaker: %q", out)
	}
	if !strings.Contains(out, "✗ b: MISMATCH") {
		t.Errorf("mismatch should be marked: %q", out)
	}
}

func TestGetTheme(t *testing.T) {
	if GetTheme("ocean").Name != "ocean" {
		t.Error("expected ocean theme")
	}
	if GetTheme("nonexistent").Name != "cyberpunk" {
		t.Error("unknown theme should fall back to cyberpunk")
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("theme names out of sync")
	}
}

type plane struct{ n int }

func (p plane) Dims() (int, int)   { return p.n, p.n }
func (p plane) X(c int) float64    { return float64(c) }
func (p plane) Y(r int) float64    { return float64(r) }
func (p plane) Z(c, r int) float64 { return float64(c * r) }

func TestCanvasLine(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Line(0, 0, 3, 0)
	if got := c.String(); got != "⠉⠉\n" {
		t.Errorf("unexpected canvas %q", got)
	}
	c.Clear()
	c.Set(-1, 0)
	c.Set(4, 0)
	if got := c.String(); got != "⠀⠀\n" {
		t.Errorf("out of range dots should be ignored, got %q", got)
	}
}

func TestWireframe(t *testing.T) {
	out := Wireframe(plane{n: 5}, Camera{Elevation: 25, Azimuth: 45}, 30, 10)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(lines))
	}
	if strings.Trim(out, "⠀\n") == "" {
		t.Error("wireframe should draw something")
	}
	if got := Wireframe(plane{n: 1}, Camera{}, 4, 2); got != "⠀⠀⠀⠀\n⠀⠀⠀⠀\n" {
		t.Errorf("single point grid should render blank, got %q", got)
	}
}
