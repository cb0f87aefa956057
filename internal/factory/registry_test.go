package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/conneroisu/viewtree/internal/errors"
	"github.com/conneroisu/viewtree/internal/view"
)

func TestRegistryCreateKnownType(t *testing.T) {
	r := NewRegistry()
	r.Register("widget", Generic)
	r.SetDeps(&view.Deps{Factory: r})

	var created *view.View
	err := r.Create("widget", view.Options{}, func(v *view.View) { created = v })
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.IsReady(), "the registry initializes before handing out")
}

func TestRegistryCaseFoldsTypeNames(t *testing.T) {
	r := NewRegistry()
	r.Register("HeaderBar", Generic)

	assert.True(t, r.Has("headerbar"))
	assert.True(t, r.Has("HEADERBAR"))

	err := r.Create("headerBAR", view.Options{}, nil)
	assert.NoError(t, err)
}

func TestRegistryUnknownTypeIsFatal(t *testing.T) {
	r := NewRegistry()
	err := r.Create("nope", view.Options{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, verrors.ErrUnknownType)
}

func TestRegistryEmptyNameUsesDefaultType(t *testing.T) {
	r := NewRegistry()
	r.Register("view", Generic)
	r.SetDefaultType("view")

	var created *view.View
	require.NoError(t, r.Create("", view.Options{}, func(v *view.View) { created = v }))
	assert.NotNil(t, created)
}

func TestRegistryEmptyNameWithoutDefaultFails(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Create("", view.Options{}, nil))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("gone", Generic)
	require.True(t, r.Has("gone"))

	r.Unregister("gone")
	assert.False(t, r.Has("gone"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryWatchReceivesEvents(t *testing.T) {
	r := NewRegistry()
	ch := r.Watch()
	defer r.UnWatch(ch)

	r.Register("panel", Generic)
	ev := <-ch
	assert.Equal(t, EventTypeRegistered, ev.Type)
	assert.Equal(t, "panel", ev.TypeName)

	r.Unregister("panel")
	ev = <-ch
	assert.Equal(t, EventTypeUnregistered, ev.Type)
}

func TestRegistryUnregisterUnknownEmitsNothing(t *testing.T) {
	r := NewRegistry()
	ch := r.Watch()
	defer r.UnWatch(ch)

	r.Unregister("never-registered")
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestRegistryCustomConstructor(t *testing.T) {
	r := NewRegistry()
	r.Register("titled", func(options view.Options) *view.View {
		if options == nil {
			options = view.Options{}
		}
		options["title"] = "fixed"
		return view.New(options)
	})
	r.SetDeps(&view.Deps{Factory: r})

	var created *view.View
	require.NoError(t, r.Create("titled", view.Options{}, func(v *view.View) { created = v }))
	require.NotNil(t, created)
	assert.Equal(t, "fixed", created.RawOptions()["title"])
}
