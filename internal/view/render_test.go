package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/viewtree/internal/async"
	"github.com/conneroisu/viewtree/internal/dom"
)

func TestRenderPassesComposedDataToRenderer(t *testing.T) {
	doc := testDoc()
	root, _, _, renderer, _ := newRoot(Options{
		OptTemplateContent: `<p>{{test}}</p>`,
		OptData:            map[string]interface{}{"test": "test"},
	}, doc)

	require.True(t, root.Render().Done())

	assert.Equal(t, "test", renderer.lastData["test"])
	assert.Equal(t, root, renderer.lastData["view"], "data carries a self-reference")
	assert.Contains(t, docHTML(doc), "<p>test</p>")
	require.NotNil(t, root.Element())
	assert.Equal(t, "body", root.Element().Data)
	assert.True(t, root.IsFullyRendered())
}

func TestRenderDataSupplierFunc(t *testing.T) {
	doc := testDoc()
	calls := 0
	root, _, _, _, _ := newRoot(Options{
		OptTemplateContent: `<p>{{n}}</p>`,
		OptData: func() interface{} {
			calls++
			return map[string]interface{}{"n": calls}
		},
	}, doc)

	require.True(t, root.Render().Done())
	assert.Contains(t, docHTML(doc), "<p>1</p>")
	require.True(t, root.Render().Done())
	assert.Contains(t, docHTML(doc), "<p>2</p>", "the supplier is re-invoked per cycle")
}

func TestRenderSplicesNormalChild(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="wrap">{{content}}</div>`,
	}, doc)

	child := New(Options{OptTemplateContent: `<span>hi</span>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("content", child)

	require.True(t, root.Render().Done())

	wrap, err := doc.Query(`.wrap`)
	require.NoError(t, err)
	require.NotNil(t, wrap)
	val, ok := dom.Attr(wrap, DataAttr)
	assert.True(t, ok)
	assert.Equal(t, child.ID(), val, "the surviving parent element carries the child id")
	assert.Equal(t, wrap, child.Element())
	assert.Contains(t, innerHTML(wrap), "<span>hi</span>")
	assert.True(t, child.IsFullyRendered())
}

func TestRenderSplicesComponentChildWholesale(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="bar">{{btn}}</div>`,
	}, doc)

	child := New(Options{
		OptComponent:       true,
		OptTemplateContent: `<button>ok</button>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("btn", child)

	require.True(t, root.Render().Done())

	require.NotNil(t, child.Element())
	assert.Equal(t, "button", child.Element().Data, "component root replaces the slot")
	val, _ := dom.Attr(child.Element(), DataAttr)
	assert.Equal(t, child.ID(), val)
	bar, err := doc.Query(`.bar`)
	require.NoError(t, err)
	assert.Contains(t, innerHTML(bar), "<button")
	assert.NotContains(t, docHTML(doc), SlotTag, "no placeholder survives a component splice")
}

func TestComponentReRenderReplacesOnlyItsRoot(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="bar"><i>static</i>{{btn}}</div>`,
	}, doc)

	child := New(Options{
		OptComponent:       true,
		OptTemplateContent: `<button>ok</button>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("btn", child)
	require.True(t, root.Render().Done())

	before, err := doc.Query(`.bar`)
	require.NoError(t, err)

	require.True(t, child.ReRender().Done())

	after, err := doc.Query(`.bar`)
	require.NoError(t, err)
	assert.Equal(t, before, after, "siblings and the parent element are untouched")
	assert.Contains(t, innerHTML(after), "<i>static</i>")
	assert.Contains(t, innerHTML(after), "<button")
}

func TestKeepPreservesChildDOMAcrossParentReRender(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="bar">{{btn}}</div>`,
	}, doc)

	child := New(Options{
		OptComponent:       true,
		OptTemplateContent: `<button>ok</button>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("btn", child)
	require.True(t, root.Render().Done())

	// Out-of-band mutation a plain re-render would destroy.
	dom.SetAttr(child.Element(), "data-marked", "yes")

	require.True(t, root.ReRender(ReRenderOptions{Keep: []string{"btn"}}).Done())

	require.NotNil(t, child.Element())
	marked, ok := dom.Attr(child.Element(), "data-marked")
	assert.True(t, ok)
	assert.Equal(t, "yes", marked)
	assert.Contains(t, docHTML(doc), `data-marked="yes"`)
}

func TestReRenderWithoutPriorRenderNeverResolves(t *testing.T) {
	doc := testDoc()
	root, _, _, _, _ := newRoot(Options{
		OptTemplateContent: `<p>x</p>`,
	}, doc)

	d := root.ReRender()
	assert.False(t, d.Done(), "explicit no-op, not a failure")
	assert.False(t, root.IsRendered())

	assert.True(t, root.ReRender(ReRenderOptions{Force: true}).Done())
	assert.True(t, root.IsRendered())
}

func TestRenderWhileInFlightQueuesOnce(t *testing.T) {
	doc := testDoc()
	root, _, templator, _, _ := newRoot(Options{
		OptTemplate: "page",
	}, doc)
	templator.async = true
	templator.templates["page"] = `<p>page</p>`

	d1 := root.Render()
	assert.True(t, root.IsBeingRendered())
	d2 := root.Render()
	d3 := root.Render()
	assert.Equal(t, d2, d3, "in-flight renders share one queued cycle")
	assert.False(t, d1.Done())

	templator.flush()

	assert.True(t, d1.Done())
	assert.True(t, d2.Done(), "the queued cycle runs after the first commits")
	assert.Equal(t, 1, templator.calls, "the compiled template is cached on the view")
	assert.Contains(t, docHTML(doc), "<p>page</p>")
}

func TestCancelRenderSuppressesCommit(t *testing.T) {
	doc := testDoc()
	root, _, templator, _, _ := newRoot(Options{
		OptTemplate: "page",
	}, doc)
	templator.async = true
	templator.templates["page"] = `<p>page</p>`

	d := root.Render()
	root.CancelRender()
	templator.flush()

	assert.True(t, d.Done(), "cancellation resolves the cycle without committing")
	assert.False(t, root.IsRendered())
	assert.NotContains(t, docHTML(doc), "<p>page</p>")

	// The flag is consumed; the next cycle commits normally.
	require.True(t, root.Render().Done())
	assert.Contains(t, docHTML(doc), "<p>page</p>")
}

func TestQueuedRenderSurvivesCancellation(t *testing.T) {
	doc := testDoc()
	root, _, templator, _, _ := newRoot(Options{
		OptTemplate: "page",
	}, doc)
	templator.async = true
	templator.templates["page"] = `<p>page</p>`

	root.Render()
	queued := root.Render()
	root.CancelRender()
	templator.flush()

	assert.True(t, queued.Done(), "the queued cycle starts after the canceled one unwinds")
	assert.True(t, root.IsRendered())
	assert.Contains(t, docHTML(doc), "<p>page</p>")
}

func TestQueuedChildRenderStartsAfterParentCommit(t *testing.T) {
	doc := testDoc()
	root, deps, templator, _, _ := newRoot(Options{
		OptTemplate: "page",
	}, doc)
	templator.async = true
	templator.templates["page"] = `<div class="wrap">{{inner}}</div>`

	child := New(Options{OptTemplateContent: `<span>hi</span>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("inner", child)

	done := root.Render()
	require.True(t, child.IsBeingRendered(), "the child is prepared as part of the owner's cycle")
	queued := child.Render()
	assert.False(t, queued.Done())

	templator.flush()

	assert.True(t, done.Done())
	require.True(t, child.IsFullyRendered())
	assert.True(t, queued.Done(), "a render queued mid-flight starts once the owner commits")
}

func TestCancelRestoresKeptChildContent(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="bar">{{btn}}</div>`,
	}, doc)
	child := New(Options{
		OptComponent:       true,
		OptTemplateContent: `<button>ok</button>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("btn", child)
	require.True(t, root.Render().Done())

	gate := async.NewDeferred()
	root.SetHooks(Hooks{Prepare: func(*View) interface{} { return gate }})

	d := root.ReRender(ReRenderOptions{Keep: []string{"btn"}})
	root.CancelRender()
	gate.Resolve(nil)

	assert.True(t, d.Done())
	bar, err := doc.Query(`.bar`)
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Contains(t, innerHTML(bar), "<button", "preserved content returns to the display")
	require.NotNil(t, child.Element())
	assert.Equal(t, bar, child.Element().Parent)
}

func TestCancelRestoresKeptNormalChildContent(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="wrap">{{inner}}</div>`,
	}, doc)
	child := New(Options{OptTemplateContent: `<span>hi</span>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("inner", child)
	require.True(t, root.Render().Done())

	// Out-of-band mutation that only survives if the live nodes come back.
	span, err := doc.Query(`span`)
	require.NoError(t, err)
	require.NotNil(t, span)
	dom.SetAttr(span, "data-marked", "yes")

	gate := async.NewDeferred()
	root.SetHooks(Hooks{Prepare: func(*View) interface{} { return gate }})

	d := root.ReRender(ReRenderOptions{Keep: []string{"inner"}})
	root.CancelRender()
	gate.Resolve(nil)

	assert.True(t, d.Done())
	require.NotNil(t, child.Element())
	assert.Equal(t, child.Element(), span.Parent, "preserved nodes return to the child's element")
	assert.Contains(t, docHTML(doc), `data-marked="yes"`)
}

func TestCancelUnwindsPreparedChildren(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="wrap">{{inner}}</div>`,
	}, doc)
	child := New(Options{OptTemplateContent: `<span>hi</span>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("inner", child)
	require.True(t, root.Render().Done())

	gate := async.NewDeferred()
	root.SetHooks(Hooks{Prepare: func(*View) interface{} { return gate }})

	d := root.ReRender()
	root.CancelRender()
	gate.Resolve(nil)

	assert.True(t, d.Done())
	assert.False(t, child.IsBeingRendered(), "prepared children are unwound, not stranded")
	assert.Contains(t, docHTML(doc), "<span>hi</span>", "the display is untouched")

	// The child is not stuck queueing behind a commit that never happened.
	assert.True(t, child.Render().Done())
}

func TestMissingMarkerDropsChildContentSilently(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<p>solo</p>`,
	}, doc)
	child := New(Options{OptTemplateContent: `<span>orphan</span>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("ghost", child)

	require.True(t, root.Render().Done())

	assert.Contains(t, docHTML(doc), "<p>solo</p>")
	assert.NotContains(t, docHTML(doc), "orphan")
	assert.Zero(t, deps.Errors.Len(), "a missing marker is not a reportable condition")
}

func TestNotToRenderChildKeepsSlotAsMountPoint(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(nil, doc)

	child := New(Options{
		OptNotToRender:     true,
		OptTemplateContent: `<span>later</span>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("lazy", child)

	require.True(t, root.Render().Done())

	slot, err := doc.Query(SlotTag + `[` + DataAttr + `="` + child.ID() + `"]`)
	require.NoError(t, err)
	require.NotNil(t, slot, "the slot stays in the display as the mount point")
	assert.False(t, child.IsRendered())
	assert.NotContains(t, docHTML(doc), "later")

	// The default id selector resolves straight to the slot.
	require.True(t, child.Render().Done())
	assert.Equal(t, slot, child.Element())
	assert.Contains(t, docHTML(doc), "later")
}

func TestContainerWithoutTemplateRendersMarkersInDeclarationOrder(t *testing.T) {
	doc := testDoc()
	deps, _, _, _ := testDeps(doc)
	deps.Layouter = &stubLayouter{decls: []ChildDecl{
		{Name: "second"},
		{Name: "first"},
	}}

	root := New(Options{
		OptFullSelector:     "body",
		OptLayout:           "page.yml",
		OptDefaultChildType: "box",
	})
	require.NoError(t, root.Init(deps))

	a := root.GetChild("second")
	b := root.GetChild("first")
	require.NotNil(t, a)
	require.NotNil(t, b)
	a.templateContent = `<em>2</em>`
	b.templateContent = `<em>1</em>`

	require.True(t, root.Render().Done())

	body := innerHTML(root.Element())
	assert.Less(t, strings.Index(body, "<em>2</em>"), strings.Index(body, "<em>1</em>"),
		"declaration order, not key order")
}

func TestRenderOnRemovedViewResolvesImmediately(t *testing.T) {
	root, _, _, _, _ := newRoot(nil, testDoc())
	root.Remove()
	d := root.Render()
	assert.True(t, d.Done())
}

func TestRenderWithNoResolvableElementIsNonFatal(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptFullSelector:    "#nowhere",
		OptTemplateContent: `<p>x</p>`,
	}, doc)

	require.True(t, root.Render().Done())
	assert.True(t, root.IsRendered())
	assert.Nil(t, root.Element())
	assert.NotZero(t, deps.Errors.Len())
}

func TestPrepareHookBarrier(t *testing.T) {
	doc := testDoc()
	root, _, _, renderer, _ := newRoot(Options{
		OptTemplateContent: `<p>{{v}}</p>`,
	}, doc)

	var order []string
	root.SetHooks(Hooks{
		Prepare: func(v *View) interface{} {
			order = append(order, "prepare")
			return nil
		},
		ComposeData: func(v *View, data map[string]interface{}) {
			order = append(order, "compose")
			data["v"] = "hooked"
		},
		AfterRender: func(v *View) {
			order = append(order, "after")
		},
	})

	require.True(t, root.Render().Done())
	assert.Equal(t, []string{"prepare", "compose", "after"}, order)
	assert.Equal(t, "hooked", renderer.lastData["v"])
	assert.Contains(t, docHTML(doc), "<p>hooked</p>")
}

func TestAfterRenderEventPropagatesToChildren(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div>{{inner}}</div>`,
	}, doc)
	child := New(Options{OptTemplateContent: `<b>x</b>`})
	require.NoError(t, child.Init(deps))
	root.SetChild("inner", child)

	var order []string
	child.On(EventAfterRender, func(...interface{}) { order = append(order, "child") })
	root.On(EventAfterRender, func(...interface{}) { order = append(order, "root") })

	require.True(t, root.Render().Done())
	assert.Equal(t, []string{"child", "root"}, order, "children finish before the owner")
}

func TestRemoveComponentLeavesInertPlaceholder(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="bar">{{btn}}</div>`,
	}, doc)
	child := New(Options{
		OptComponent:       true,
		OptTemplateContent: `<button>ok</button>`,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("btn", child)
	require.True(t, root.Render().Done())

	root.ClearChild("btn")

	assert.NotContains(t, docHTML(doc), "<button")
	slot, err := doc.Query(SlotTag)
	require.NoError(t, err)
	assert.NotNil(t, slot, "an inert placeholder keeps sibling layout intact")
}

func TestRemoveNormalViewEmptiesElement(t *testing.T) {
	doc := testDoc()
	root, _, _, _, _ := newRoot(Options{
		OptTemplateContent: `<p>gone</p>`,
	}, doc)
	require.True(t, root.Render().Done())
	require.Contains(t, docHTML(doc), "<p>gone</p>")

	root.Remove()
	assert.NotContains(t, docHTML(doc), "<p>gone</p>")
}

func TestBindInAdvanceBindsOnParentAfterRender(t *testing.T) {
	doc := testDoc()
	root, deps, _, _, _ := newRoot(Options{
		OptTemplateContent: `<div class="mount"></div>`,
	}, doc)

	child := New(Options{
		OptSelector:    ".mount",
		OptNotToRender: true,
	})
	require.NoError(t, child.Init(deps))
	root.SetChild("m", child)
	assert.Nil(t, child.Element(), "nothing to bind to before the parent renders")

	require.True(t, root.Render().Done())

	require.NotNil(t, child.Element())
	assert.Contains(t, outerHTML(child.Element()), `class="mount"`)
}
