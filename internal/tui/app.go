// Package tui is an interactive inspector for composition plans: it steps
// through a scenario's frames and shows how each display's layers were
// assigned to pipelines.
package tui

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/planner"
	"github.com/displaykit/hwcplan/internal/scenario"
)

// model is the root bubbletea model for the inspector.
type model struct {
	scn    *scenario.Scenario
	device *planner.Device
	ids    []int // display IDs in attach order

	frameIndex int
	plans      map[int]*planner.Plan
	selected   int
	lastError  string

	width  int
	height int
}

func newModel(scn *scenario.Scenario, cfg *config.Config) model {
	dev := planner.NewDevice(planner.Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var ids []int
	for _, d := range scn.BuildDisplays() {
		dev.AttachDisplay(d)
		ids = append(ids, d.ID)
	}

	m := model{scn: scn, device: dev, ids: ids}
	m.planFrame(0)
	return m
}

// planFrame prepares and commits the scenario frame at index i.
func (m *model) planFrame(i int) {
	if len(m.scn.Frames) == 0 {
		m.plans = nil
		return
	}
	if i < 0 {
		i = len(m.scn.Frames) - 1
	}
	i %= len(m.scn.Frames)
	m.frameIndex = i

	plans, err := m.device.Prepare(m.scn.Frames[i].BuildFrame())
	if err != nil {
		m.lastError = err.Error()
		return
	}
	m.device.Commit()
	m.lastError = ""
	m.plans = plans
}

func (m model) selectedID() int {
	if len(m.ids) == 0 {
		return -1
	}
	return m.ids[m.selected%len(m.ids)]
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "right", "n", " ":
			m.planFrame(m.frameIndex + 1)
			return m, nil

		case "left", "p":
			m.planFrame(m.frameIndex - 1)
			return m, nil

		case "tab":
			if len(m.ids) > 0 {
				m.selected = (m.selected + 1) % len(m.ids)
			}
			return m, nil

		case "f":
			// Replan the same frame with composition forced to software.
			m.device.ForceSoftware(1)
			m.planFrame(m.frameIndex)
			return m, nil

		case "b":
			id := m.selectedID()
			if id >= 0 {
				snap := m.device.Snapshot()
				for _, d := range snap.Displays {
					if d.ID == id {
						m.device.SetBlanked(id, !d.Blanked)
					}
				}
				m.planFrame(m.frameIndex)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := titleStyle.Render(fmt.Sprintf(" hwcplan  frame %d/%d ",
		m.frameIndex+1, len(m.scn.Frames)))

	help := helpStyle.Width(m.width).Render(
		"n/p frame • tab display • f force software • b blank • q quit")

	sidebar := m.renderSidebar()
	sideWidth := lipgloss.Width(sidebar)

	previewWidth := m.width - sideWidth - 1
	previewHeight := m.height - lipgloss.Height(title) - lipgloss.Height(help) - 1
	if previewWidth < 10 {
		previewWidth = 10
	}
	if previewHeight < 3 {
		previewHeight = 3
	}

	var preview string
	if id := m.selectedID(); id >= 0 {
		snap := m.device.Snapshot()
		var dispW, dispH int
		for _, d := range snap.Displays {
			if d.ID == id {
				dispW, dispH = d.Config.Width, d.Config.Height
			}
		}
		lines := renderPlanPreview(m.plans[id], dispW, dispH, previewWidth, previewHeight)
		preview = strings.Join(lines, "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", preview)

	footer := help
	if m.lastError != "" {
		footer = lipgloss.JoinVertical(lipgloss.Left,
			errorStyle.Render(m.lastError), help)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, body, footer)
}

// renderSidebar lists the displays and details the selected plan.
func (m model) renderSidebar() string {
	snap := m.device.Snapshot()

	var b strings.Builder
	for i, d := range snap.Displays {
		line := fmt.Sprintf("%d %s %s %dx%d", d.ID, d.Kind, d.Role,
			d.Config.Width, d.Config.Height)
		if d.MirrorOf >= 0 {
			line += fmt.Sprintf(" ⇒%d", d.MirrorOf)
		}
		if d.Blanked {
			line += " (blank)"
		}
		if len(m.ids) > 0 && i == m.selected%len(m.ids) {
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteByte('\n')
	}

	if p := m.plans[m.selectedID()]; p != nil {
		b.WriteByte('\n')
		b.WriteString(dimStyle.Render(planSummary(p)))
		b.WriteByte('\n')
		for _, a := range p.Assignments {
			b.WriteString(assignmentLine(a))
			b.WriteByte('\n')
		}
	}

	return lipgloss.NewStyle().Width(34).Render(b.String())
}

func planSummary(p *planner.Plan) string {
	parts := []string{fmt.Sprintf("pipes %d/%d", p.UsedPipes, p.Available)}
	if p.Fallback {
		parts = append(parts, fmt.Sprintf("fallback z%d", p.FallbackZ))
	}
	if p.SwapRB {
		parts = append(parts, "swap-rb")
	}
	if p.Mirrored {
		parts = append(parts, "mirrored")
	}
	return strings.Join(parts, " • ")
}

func assignmentLine(a planner.Assignment) string {
	if a.Writeback {
		return fmt.Sprintf("  wb   %s %dx%d", a.Format, a.Window.W, a.Window.H)
	}
	state := " "
	if !a.Enabled {
		state = "×"
	}
	return fmt.Sprintf("  p%d z%d %s %s %s",
		a.Pipe, a.Z, state, a.Format, a.Window)
}

// Run opens the inspector over a scenario.
func Run(scn *scenario.Scenario, cfg *config.Config) error {
	p := tea.NewProgram(newModel(scn, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
