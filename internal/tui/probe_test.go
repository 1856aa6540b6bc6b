package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/mercurialworld/pochamoe-api/internal/modversion"
)

func newTestEvaluator(t *testing.T) *modversion.Handler {
	t.Helper()
	v, err := modversion.NewValidator(modversion.StaticRegistry("DumbRequestManager"), modversion.VersionStrict)
	require.NoError(t, err)
	return &modversion.Handler{Validator: v, Resolver: modversion.StaticResolver{Answer: "0.6.7.0"}}
}

func typeRunes(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestProbeModel_EvaluatesOnKeystroke(t *testing.T) {
	var m tea.Model = newProbeModel(newTestEvaluator(t), "DumbRequestManager", "1.2.3")
	require.Equal(t, modversion.OutcomeAnswered, m.(probeModel).result.Outcome)
	require.Contains(t, m.View(), "0.6.7.0")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, fieldBSVersion, m.(probeModel).focus)

	m = typeRunes(m, "x")
	pm := m.(probeModel)
	require.Equal(t, "1.2.3x", pm.inputs[fieldBSVersion].Value())
	require.Equal(t, modversion.OutcomeInvalid, pm.result.Outcome)
	require.Contains(t, m.View(), "Must be valid Beat Saber version")
}

func TestProbeModel_EmptySegmentIsNoRoute(t *testing.T) {
	m := newProbeModel(newTestEvaluator(t), "", "1.2.3")
	require.False(t, m.matched)
	require.Contains(t, m.View(), "404 no route")
}

func TestProbeModel_FocusWraps(t *testing.T) {
	var m tea.Model = newProbeModel(newTestEvaluator(t), "a", "b")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, fieldBSVersion, m.(probeModel).focus)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, fieldModName, m.(probeModel).focus)
}

func TestProbeModel_Quit(t *testing.T) {
	m := newProbeModel(newTestEvaluator(t), "a", "b")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestRenderResult_Plain(t *testing.T) {
	var sb strings.Builder
	r := lipgloss.NewRenderer(&sb)
	h := newTestEvaluator(t)

	out := RenderResult(r, h.Evaluate(context.Background(), nil))
	require.Equal(t, "500 decode_failed  kind=missing_path_params class=server\n"+
		`{"message":"No paths parameters found for matched route","location":null}`, out)
}
