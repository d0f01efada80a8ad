package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"orcjit"
)

var watchCmd = &cobra.Command{
	Use:   "watch <scenario.toml>",
	Short: "Build a session from a scenario file and live-watch its symbols reach Ready",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	s, err := buildSession(cfg)
	if err != nil {
		return err
	}
	if cfg.Session.Workers <= 0 {
		// The watch dashboard is only interesting with materialization
		// spread across time; default to a small worker pool if the
		// scenario didn't request one.
		s.SetDispatcher(orcjit.NewThreadedDispatcher(4))
	}

	events := make(chan watchEvent, 64)
	total := 0
	for _, libName := range cfg.LibraryNames() {
		lib, ok := s.Library(libName)
		if !ok {
			continue
		}
		for _, info := range lib.Snapshot() {
			total++
			go func(libName, name string) {
				l, _ := s.Library(libName)
				_, err := s.BlockingLookup([]orcjit.SearchEntry{{Lib: l, MatchNonExported: true}}, []string{name}, orcjit.StageReady)
				events <- watchEvent{lib: libName, name: name, err: err}
			}(libName, info.Name)
		}
	}

	m := newWatchModel(events, total)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

type watchEvent struct {
	lib  string
	name string
	err  error
}

type watchRow struct {
	lib    string
	name   string
	status string
}

type watchModel struct {
	events  <-chan watchEvent
	total   int
	done    int
	rows    []watchRow
	index   map[string]int
	table   table.Model
	spinner spinner.Model
	ready   bool
}

func newWatchModel(events <-chan watchEvent, total int) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	cols := []table.Column{
		{Title: "Library", Width: 16},
		{Title: "Symbol", Width: 24},
		{Title: "Status", Width: 14},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(12))

	return &watchModel{
		events:  events,
		total:   total,
		index:   make(map[string]int),
		table:   t,
		spinner: sp,
	}
}

type watchEventMsg watchEvent
type watchDoneMsg struct{}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return watchDoneMsg{}
		}
		return watchEventMsg(ev)
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchEventMsg:
		m.apply(watchEvent(msg))
		m.done++
		if m.done >= m.total {
			return m, tea.Quit
		}
		return m, m.listen()
	case watchDoneMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *watchModel) apply(ev watchEvent) {
	status := "ready"
	if ev.err != nil {
		status = "failed"
	}
	key := ev.lib + ":" + ev.name
	if idx, ok := m.index[key]; ok {
		m.rows[idx].status = status
	} else {
		m.index[key] = len(m.rows)
		m.rows = append(m.rows, watchRow{lib: ev.lib, name: ev.name, status: status})
	}
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, table.Row{r.lib, r.name, r.status})
	}
	m.table.SetRows(rows)
}

func (m *watchModel) View() string {
	header := fmt.Sprintf("%s materializing symbols (%d/%d done)", m.spinner.View(), m.done, m.total)
	if m.done >= m.total {
		header = fmt.Sprintf("done: all %d symbols reached Ready or Failed", m.total)
	}
	return lipgloss.NewStyle().Bold(true).Render(header) + "\n\n" + m.table.View() + "\n"
}
