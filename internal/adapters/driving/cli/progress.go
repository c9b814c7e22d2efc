package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// runEventMsg carries a run event into the progress program.
type runEventMsg domain.RunEvent

// runModel is the bubbletea model behind the run progress line.
type runModel struct {
	bar   progress.Model
	st    styles
	last  domain.RunEvent
	pairs int
	seen  bool
}

func newRunModel() runModel {
	return runModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(32)),
		st:  newStyles(),
	}
}

func (m runModel) Init() tea.Cmd {
	return nil
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runEventMsg:
		ev := domain.RunEvent(msg)
		m.last, m.seen = ev, true
		if ev.State == domain.RunStateRecorded {
			m.pairs++
		}
		if ev.State.IsTerminal() {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(48, msg.Width/3))
	}
	return m, nil
}

func (m runModel) View() string {
	if !m.seen {
		return ""
	}
	ev := m.last

	fraction := 0.0
	if ev.QueryTotal > 0 {
		fraction = float64(ev.QueryIndex) / float64(ev.QueryTotal)
	}
	if ev.State == domain.RunStateDone {
		fraction = 1
	}

	status := ev.State.String()
	if ev.Passage != nil {
		status += " " + ev.Passage.Label()
	}
	if ev.Cached {
		status += m.st.Muted.Render(" (cached)")
	}

	return fmt.Sprintf("%s query %d/%d, %d pairs, %s\n",
		m.bar.ViewAs(fraction), min(ev.QueryIndex+1, ev.QueryTotal), ev.QueryTotal, m.pairs, status)
}

// progressReporter renders run events. On a terminal a bubbletea program
// redraws a progress bar in place; otherwise one line is printed per
// analysed pair.
type progressReporter struct {
	out   io.Writer
	pairs int

	program *tea.Program
	done    chan struct{}
}

func newProgressReporter(out io.Writer) *progressReporter {
	p := &progressReporter{out: out}
	if !isTerminal(out) {
		return p
	}

	// No input and no signal handler: interrupts cancel the run context instead.
	p.program = tea.NewProgram(newRunModel(),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Observe handles one run event.
func (p *progressReporter) Observe(ev domain.RunEvent) {
	if ev.State == domain.RunStateRecorded {
		p.pairs++
	}

	if p.program != nil {
		p.program.Send(runEventMsg(ev))
		return
	}

	if ev.State == domain.RunStateAnalyzing && ev.Passage != nil && ev.Query != nil {
		fmt.Fprintf(p.out, "[%d/%d] %s x %s\n", ev.QueryIndex+1, ev.QueryTotal, ev.Query.Label(), ev.Passage.Label())
	}
}

// Finish stops the progress program and waits for its last frame.
func (p *progressReporter) Finish() {
	if p.program == nil {
		return
	}
	p.program.Quit()
	<-p.done
}
