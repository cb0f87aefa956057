package view

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/viewtree/internal/dom"
	verrors "github.com/conneroisu/viewtree/internal/errors"
)

// ownSelectorPart is the view's selector relative to its parent: the
// declared relative selector, or the default attribute selector keyed by
// the view's id, which is unique without caller input.
func (v *View) ownSelectorPart() string {
	if v.selector != "" {
		return v.selector
	}
	return fmt.Sprintf(`[%s="%s"]`, DataAttr, v.id)
}

// ResolvedSelector is the view's effective display-location selector: an
// explicit full selector, or the parent's resolved selector composed with
// this view's relative part.
func (v *View) ResolvedSelector() string {
	if v.fullSelector != "" {
		return v.fullSelector
	}
	part := v.ownSelectorPart()
	if v.parent == nil {
		return part
	}
	return v.parent.ResolvedSelector() + " " + part
}

// SetElement binds the view directly to a host-document node. Used for
// roots and by tests; normal binding goes through bind.
func (v *View) SetElement(n *html.Node) {
	v.element = n
	if n != nil {
		dom.SetAttr(n, DataAttr, v.id)
	}
}

// document returns the host document, walking up the tree if this view's
// deps were never set directly.
func (v *View) document() *dom.Document {
	if v.deps != nil && v.deps.Document != nil {
		return v.deps.Document
	}
	if v.parent != nil {
		return v.parent.document()
	}
	return nil
}

// bind resolves the view's element in the host document. The first lookup
// is scoped under the nearest already-rendered ancestor's element to avoid
// ambiguous global matches; when no ancestor qualifies, or the scoped
// lookup misses, it falls back to a global lookup.
func (v *View) bind() bool {
	doc := v.document()
	if doc == nil {
		return false
	}

	if v.fullSelector == "" {
		if scope, sel := v.scopedLookup(); scope != nil {
			n, err := dom.Query(scope, sel)
			if err == nil && n != nil && n != scope {
				v.element = n
				return true
			}
		}
	}

	n, err := doc.Query(v.ResolvedSelector())
	if err != nil {
		v.reportf("bind", verrors.SeverityWarning, "bad selector %q: %v", v.ResolvedSelector(), err)
		return false
	}
	if n == nil {
		return false
	}
	v.element = n
	return true
}

// scopedLookup returns the nearest rendered ancestor's element and the
// selector chain from that ancestor down to this view. An intermediate
// full selector breaks scoping and forces the global path.
func (v *View) scopedLookup() (*html.Node, string) {
	sel := v.ownSelectorPart()
	for a := v.parent; a != nil; a = a.parent {
		if a.isLive() {
			return a.element, sel
		}
		if a.fullSelector != "" {
			return nil, ""
		}
		sel = a.ownSelectorPart() + " " + sel
	}
	return nil, ""
}

// bindInAdvance defers lookup+bind until the owning parent's next
// after-render notification: the selector typically targets a placeholder
// that does not exist until the parent has rendered it.
func (v *View) bindInAdvance() {
	if v.parent == nil || v.bindQueued {
		return
	}
	v.bindQueued = true
	parent := v.parent
	v.listener.ListenTo(parent, EventAfterRender, func(...interface{}) {
		if !v.bindQueued {
			return
		}
		v.bindQueued = false
		if v.removed || v.parent != parent {
			return
		}
		if v.element == nil {
			v.bind()
		}
	})
}
