package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flicker/pkg/sensor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// resultModel is the Bubble Tea model backing `flickerctl watch`: a
// scrolling viewport of the most recent PollSensorData results,
// refreshed on a timer. It holds no driver state of its own, only a
// reference to the already-open Interface the caller started capture
// on.
type resultModel struct {
	iface    sensor.Interface
	viewport viewport.Model
	ready    bool
	err      error
	latest   []sensor.NCSDataMultiSpectralSensor
	polled   int
}

type pollMsg struct {
	results []sensor.NCSDataMultiSpectralSensor
	err     error
}

type pollTickMsg time.Time

func (m resultModel) Init() tea.Cmd {
	return tea.Batch(m.poll, pollTick())
}

func pollTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m resultModel) poll() tea.Msg {
	results, rc := m.iface.PollSensorData(1)
	if rc != sensor.OK {
		return pollMsg{err: fmt.Errorf("PollSensorData failed: %d", rc)}
	}
	return pollMsg{results: results}
}

func (m resultModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.viewport.SetContent(m.render())
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case pollTickMsg:
		return m, tea.Batch(m.poll, pollTick())

	case pollMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		if len(msg.results) > 0 {
			m.latest = msg.results
			m.polled += len(msg.results)
		}
		if m.ready {
			m.viewport.SetContent(m.render())
		}

	case tea.KeyMsg:
		if m.err != nil {
			return m, tea.Quit
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m resultModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	title := titleStyle.Render("vd628x flicker sensor")
	help := infoStyle.Render(fmt.Sprintf("polled %d results so far • q: Quit", m.polled))
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m resultModel) render() string {
	var sb strings.Builder
	if len(m.latest) == 0 {
		return "Waiting for first result..."
	}
	for _, r := range m.latest {
		f := r.Flicker
		line := fmt.Sprintf(
			"sampling %d Hz\n  1st peak: %7.2f Hz (amp %.1f)\n  2nd peak: %7.2f Hz (amp %.1f)\n  avg top-5 amp: %.1f\n  raw min/max/avg: %d/%d/%d\n",
			f.ConfiguredSamplingFlickerFreq,
			f.FirstMaximaPeak.FrequencyHz, f.FirstMaximaPeak.Amplitude,
			f.SecondMaximaPeak.FrequencyHz, f.SecondMaximaPeak.Amplitude,
			f.AvgTopFiveAmplitude,
			f.RawMin, f.RawMax, f.RawAvg,
		)
		sb.WriteString(highlightStyle.Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RunWatch launches the live terminal viewer against an already
// Started Interface. It returns when the user quits.
func RunWatch(iface sensor.Interface) error {
	p := tea.NewProgram(resultModel{iface: iface}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
