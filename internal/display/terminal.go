package display

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/updatewatch/internal/status"
)

const defaultBarWidth = 40

var (
	statusStyle  = lipgloss.NewStyle().Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	percentStyle = lipgloss.NewStyle().Bold(true).PaddingLeft(1)
)

type textWidget struct{ text string }

func (w *textWidget) SetText(text string) { w.text = text }

type barWidget struct {
	model progress.Model
	value int
}

func (b *barWidget) SetValue(v int) { b.value = v }

func (b *barWidget) view() string {
	pct := float64(b.value) / 100
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	return b.model.ViewAs(pct)
}

// Terminal renders the update screen as text, one frame per published status.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	status  textWidget
	step    textWidget
	percent textWidget
	bar     barWidget
	panel   Panel
}

// NewTerminal writes frames to out using a progress bar of the given width.
func NewTerminal(out io.Writer, width int) *Terminal {
	if width <= 0 {
		width = defaultBarWidth
	}
	t := &Terminal{
		out: out,
		bar: barWidget{model: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		)},
	}
	t.panel = Panel{Status: &t.status, Step: &t.step, Percent: &t.percent, Bar: &t.bar}
	return t
}

func (t *Terminal) Publish(ctx context.Context, st status.Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.panel.Publish(ctx, st); err != nil {
		return err
	}
	_, err := io.WriteString(t.out, t.view()+"\n")
	return err
}

// View returns the current frame.
func (t *Terminal) View() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view()
}

func (t *Terminal) view() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		statusStyle.Render(t.status.text),
		stepStyle.Render(t.step.text),
		lipgloss.JoinHorizontal(lipgloss.Center, t.bar.view(), percentStyle.Render(t.percent.text)),
	)
}
