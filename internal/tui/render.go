package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mercurialworld/pochamoe-api/internal/modversion"
)

// Body returns exactly what the server would write for res.
func Body(res modversion.Result) string {
	if res.Error != nil {
		b, err := json.Marshal(res.Error)
		if err != nil {
			return res.Error.Message
		}
		return string(b)
	}
	return res.Text
}

type styles struct {
	ok, client, server, faint, label lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return styles{
		ok:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		client: r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		server: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		faint:  r.NewStyle().Faint(true),
		label:  r.NewStyle().Bold(true),
	}
}

func (s styles) status(code int) lipgloss.Style {
	switch {
	case code < 400:
		return s.ok
	case code < 500:
		return s.client
	default:
		return s.server
	}
}

// RenderResult formats res as a status line followed by the body. Colors
// follow the renderer's profile, so a non-terminal writer gets plain text.
func RenderResult(r *lipgloss.Renderer, res modversion.Result) string {
	return renderWith(newStyles(r), res)
}

func renderWith(st styles, res modversion.Result) string {
	var b strings.Builder
	b.WriteString(st.status(res.Status).Render(fmt.Sprintf("%d %s", res.Status, res.Outcome)))
	if res.Rejection != nil {
		b.WriteString(st.faint.Render(fmt.Sprintf("  kind=%s class=%s", res.Rejection.Kind, res.Rejection.Kind.Class())))
	}
	b.WriteString("\n")
	b.WriteString(Body(res))
	return b.String()
}
