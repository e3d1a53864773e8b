package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/conlab/internal/storage"
)

// RunSource is the part of the run store the browser reads.
type RunSource interface {
	List() ([]storage.RunMetadata, error)
	LoadFormulas(runID string) ([][2]string, error)
	LoadTranscript(runID string) ([]string, error)
	LoadSnippet(runID string) (string, error)
}

const (
	stateList = iota
	stateDetail
)

const (
	paneFormulas = iota
	paneVerdicts
	paneTranscript
	paneSnippet
	paneCount
)

var paneNames = [paneCount]string{"formulas", "verdicts", "transcript", "snippet"}

type browser struct {
	src           RunSource
	runs          []storage.RunMetadata
	state, cursor int
	pane, offset  int
	lines         []string
	err           error
	width, height int
}

func newBrowser(src RunSource) (*browser, error) {
	runs, err := src.List()
	if err != nil {
		return nil, err
	}
	return &browser{src: src, runs: runs, width: 100, height: 30}, nil
}

func (b browser) Init() tea.Cmd { return nil }

func (b browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if b.state == stateList {
			return b.listKey(msg)
		}
		return b.detailKey(msg)
	}
	return b, nil
}

func (b browser) listKey(msg tea.KeyMsg) (browser, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return b, tea.Quit
	case "up", "k":
		if b.cursor > 0 {
			b.cursor--
		}
	case "down", "j":
		if b.cursor < len(b.runs)-1 {
			b.cursor++
		}
	case "enter", " ":
		if len(b.runs) > 0 {
			b.state, b.pane = stateDetail, paneFormulas
			b.load()
		}
	}
	return b, nil
}

func (b browser) detailKey(msg tea.KeyMsg) (browser, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return b, tea.Quit
	case "q", "esc", "backspace":
		b.state, b.err = stateList, nil
	case "tab", "right", "l":
		b.pane = (b.pane + 1) % paneCount
		b.load()
	case "shift+tab", "left", "h":
		b.pane = (b.pane + paneCount - 1) % paneCount
		b.load()
	case "up", "k":
		if b.offset > 0 {
			b.offset--
		}
	case "down", "j":
		if b.offset < len(b.lines)-1 {
			b.offset++
		}
	}
	return b, nil
}

// load fills lines for the current pane of the selected run.
func (b *browser) load() {
	run := b.runs[b.cursor]
	b.offset, b.err, b.lines = 0, nil, nil
	switch b.pane {
	case paneFormulas:
		fs, err := b.src.LoadFormulas(run.ID)
		b.err = err
		for _, f := range fs {
			b.lines = append(b.lines, f[0]+" = "+f[1])
		}
	case paneVerdicts:
		for _, v := range run.Verdicts {
			b.lines = append(b.lines, Verdict(v))
		}
	case paneTranscript:
		lines, err := b.src.LoadTranscript(run.ID)
		b.err = err
		b.lines = strings.Split(strings.TrimRight(Transcript(lines), "\n"), "\n")
	case paneSnippet:
		s, err := b.src.LoadSnippet(run.ID)
		b.err = err
		if s == "" && err == nil {
			s = "(no snippet exported)"
		}
		b.lines = strings.Split(strings.TrimRight(s, "\n"), "\n")
	}
}

func (b browser) View() string {
	if b.state == stateDetail {
		return b.viewDetail()
	}
	return b.viewList()
}

func (b browser) viewList() string {
	var sb strings.Builder
	sb.WriteString("\n  " + Title("CONLAB RUNS") + "\n\n")
	if len(b.runs) == 0 {
		sb.WriteString("  " + Muted("no stored runs, derive with --save first") + "\n")
	}
	for i, r := range b.runs {
		marker := "  "
		if i == b.cursor {
			marker = "▸ "
		}
		status := VerdictBar(r.Verdicts, 10)
		line := fmt.Sprintf("%-28s %-11s %s  %s", r.ID, r.Family, r.Timestamp.Format("2006-01-02 15:04"), status)
		if i == b.cursor {
			sb.WriteString("  " + fg(CurrentTheme.Secondary).Bold(true).Render(marker+line) + "\n")
		} else {
			sb.WriteString("  " + Muted(marker) + line + "\n")
		}
	}
	sb.WriteString("\n  " + Muted("j/k navigate  enter open  q quit") + "\n")
	return sb.String()
}

func (b browser) viewDetail() string {
	run := b.runs[b.cursor]
	var sb strings.Builder
	sb.WriteString("\n  " + Title(fmt.Sprintf("%s  (%s, %s axis order)", run.ID, run.Family, run.Order)) + "\n  ")
	for i, name := range paneNames {
		if i == b.pane {
			sb.WriteString(fg(CurrentTheme.Primary).Bold(true).Render("["+name+"]") + " ")
		} else {
			sb.WriteString(Muted(" "+name+" ") + " ")
		}
	}
	sb.WriteString("\n\n")

	if b.err != nil {
		sb.WriteString("  " + fg(CurrentTheme.Error).Render(b.err.Error()) + "\n")
	}
	visible := max(1, b.height-8)
	end := min(len(b.lines), b.offset+visible)
	for _, line := range b.lines[min(b.offset, end):end] {
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("\n  " + Muted(fmt.Sprintf("tab pane  j/k scroll (%d/%d)  esc back", min(b.offset+1, len(b.lines)), len(b.lines))) + "\n")
	return sb.String()
}

// RunBrowser opens the interactive run browser.
func RunBrowser(src RunSource) error {
	b, err := newBrowser(src)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}
