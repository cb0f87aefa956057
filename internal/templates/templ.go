package templates

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/viewtree/internal/view"
)

// WrapComponent adapts a precompiled templ component as a template form
// the renderer understands. Components carry their own data, so the
// composed view data is not threaded through; placeholder markers for
// nested views can be emitted inside the component with Slot.
func WrapComponent(c templ.Component) view.Template {
	return c
}

// Slot returns a templ component emitting the placeholder marker for a
// child view id, so templ-built parents can splice engine-managed
// children.
func Slot(id string) templ.Component {
	return templ.Raw(view.SlotMarker(id))
}

func renderComponent(c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
