package display

import (
	"context"

	"github.com/loykin/updatewatch/internal/status"
)

// Label is a text widget.
type Label interface {
	SetText(text string)
}

// Bar is a progress bar widget taking a 0-100 value.
type Bar interface {
	SetValue(v int)
}

// Panel binds a status to the widgets of an update screen.
// Any widget may be nil; it is then skipped.
type Panel struct {
	Status  Label
	Step    Label
	Percent Label
	Bar     Bar
}

// Publish pushes st to every widget present.
func (p *Panel) Publish(_ context.Context, st status.Status) error {
	if p == nil {
		return nil
	}
	if p.Status != nil {
		p.Status.SetText(st.Status)
	}
	if p.Step != nil {
		p.Step.SetText(st.Step)
	}
	if p.Percent != nil {
		p.Percent.SetText(st.Percent())
	}
	if p.Bar != nil {
		p.Bar.SetValue(st.Progress)
	}
	return nil
}
