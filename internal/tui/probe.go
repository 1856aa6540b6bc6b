package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"

	"github.com/mercurialworld/pochamoe-api/internal/modversion"
)

// Evaluator runs one query. *modversion.Handler satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, params gin.Params) modversion.Result
}

type probeKeyMap struct {
	Next key.Binding
	Prev key.Binding
	Quit key.Binding
}

func (k probeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Quit}
}

func (k probeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Quit}}
}

var probeKeys = probeKeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "down", "enter"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "prev field"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}

const (
	fieldModName = iota
	fieldBSVersion
	fieldCount
)

type probeModel struct {
	eval   Evaluator
	inputs []textinput.Model
	focus  int
	help   help.Model
	keys   probeKeyMap
	styles styles

	// matched is false while a segment is empty; gin would answer 404.
	matched bool
	result  modversion.Result
}

func newProbeModel(eval Evaluator, modName, bsVersion string) probeModel {
	mk := func(prompt, placeholder, value string) textinput.Model {
		ti := textinput.New()
		ti.Prompt = prompt
		ti.Placeholder = placeholder
		ti.CharLimit = 128
		ti.SetValue(value)
		return ti
	}
	m := probeModel{
		eval: eval,
		inputs: []textinput.Model{
			mk("mod_name   > ", "DumbRequestManager", modName),
			mk("bs_version > ", "1.29.1", bsVersion),
		},
		help:   help.New(),
		keys:   probeKeys,
		styles: newStyles(nil),
	}
	m.inputs[fieldModName].Focus()
	m.evaluate()
	return m
}

func (m probeModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			return m, m.setFocus((m.focus + 1) % fieldCount)
		case key.Matches(msg, m.keys.Prev):
			return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.evaluate()
	return m, cmd
}

func (m *probeModel) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

func (m *probeModel) evaluate() {
	modName := m.inputs[fieldModName].Value()
	bsVersion := m.inputs[fieldBSVersion].Value()
	m.matched = modName != "" && bsVersion != ""
	if !m.matched {
		m.result = modversion.Result{}
		return
	}
	m.result = m.eval.Evaluate(context.Background(), gin.Params{
		{Key: "mod_name", Value: modName},
		{Key: "bs_version", Value: bsVersion},
	})
}

func (m probeModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.label.Render("pochamoe probe"))
	b.WriteString(m.styles.faint.Render("  GET /v1/version/:mod_name/:bs_version"))
	b.WriteString("\n\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.matched {
		b.WriteString(renderWith(m.styles, m.result))
	} else {
		b.WriteString(m.styles.client.Render("404 no route"))
		b.WriteString(m.styles.faint.Render("  both segments must be non-empty"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// RunProbe starts the interactive probe on in/out.
func RunProbe(eval Evaluator, modName, bsVersion string, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(newProbeModel(eval, modName, bsVersion), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui run failed: %w", err)
	}
	return nil
}

var _ tea.Model = probeModel{}
