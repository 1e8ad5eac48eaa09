package emitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/emitter/emitter"
)

func noop() *emitter.Listener {
	return emitter.NewListener(func(...any) any { return nil })
}

func TestZeroValueIsUsable(t *testing.T) {
	var e emitter.Emitter

	assert.Empty(t, e.Events())
	assert.False(t, e.HasEvent("missing"))

	e.Emit(emitter.Key("missing"), 1)
	assert.False(t, e.HasEvent("missing"), "emit must not create keys")
}

func TestDefineEvents(t *testing.T) {
	e := emitter.New()
	e.DefineEvents(emitter.Keys("foo", "bar", "baz")...)

	assert.Equal(t, []string{"foo", "bar", "baz"}, e.Events())
	assert.Empty(t, e.GetListeners("foo"))

	// Defining again keeps existing listeners and ordering.
	l := noop()
	e.On(emitter.Key("foo"), l)
	e.DefineEvent("foo")
	assert.Equal(t, []string{"foo", "bar", "baz"}, e.Events())
	assert.Len(t, e.GetListeners("foo"), 1)
}

func TestGetListeners_CreatesLiteralKey(t *testing.T) {
	e := emitter.New()

	subs := e.GetListeners("fresh")
	assert.Empty(t, subs)
	assert.True(t, e.HasEvent("fresh"))
}

func TestGetListenersAsObject(t *testing.T) {
	e := emitter.New()
	a, b := noop(), noop()
	e.On(emitter.Key("bar"), a).On(emitter.Key("baz"), b).DefineEvent("foo")

	t.Run("literal", func(t *testing.T) {
		got := e.GetListenersAsObject(emitter.Key("bar"))
		require.Len(t, got, 1)
		assert.Equal(t, []*emitter.Listener{a}, emitter.FlattenListeners(got["bar"]))
	})

	t.Run("literal creates missing key", func(t *testing.T) {
		got := e.GetListenersAsObject(emitter.Key("qux"))
		assert.Contains(t, got, "qux")
		assert.True(t, e.HasEvent("qux"))
	})

	t.Run("pattern", func(t *testing.T) {
		got := e.GetListenersAsObject(emitter.MustRegexp("^ba"))
		require.Len(t, got, 2)
		assert.Equal(t, []*emitter.Listener{a}, e.FlattenListeners(got["bar"]))
		assert.Equal(t, []*emitter.Listener{b}, e.FlattenListeners(got["baz"]))
	})

	t.Run("pattern without match creates nothing", func(t *testing.T) {
		before := e.Events()
		got := e.GetListenersAsObject(emitter.MustRegexp("^zzz"))
		assert.Empty(t, got)
		assert.Equal(t, before, e.Events())
	})
}

func TestGetListeners_ReturnsCopy(t *testing.T) {
	e := emitter.New()
	l := noop()
	e.On(emitter.Key("a"), l)

	subs := e.GetListeners("a")
	subs[0].Once = true
	subs[0].Listener = nil

	fresh := e.GetListeners("a")
	assert.False(t, fresh[0].Once)
	assert.Same(t, l, fresh[0].Listener)
}

func TestRemoveEvent(t *testing.T) {
	newEmitter := func() *emitter.Emitter {
		e := emitter.New()
		e.DefineEvents(emitter.Keys("bar", "baz", "foo")...)
		e.On(emitter.Key("foo"), noop())
		return e
	}

	t.Run("pattern removes matching keys only", func(t *testing.T) {
		e := newEmitter()
		e.RemoveEvent(emitter.MustRegexp("^ba"))
		assert.Equal(t, []string{"foo"}, e.Events())
		assert.Len(t, e.GetListeners("foo"), 1)
	})

	t.Run("literal", func(t *testing.T) {
		e := newEmitter()
		e.RemoveEvent(emitter.Key("foo"))
		assert.Equal(t, []string{"bar", "baz"}, e.Events())
	})

	t.Run("unknown literal is a no-op", func(t *testing.T) {
		e := newEmitter()
		e.RemoveEvent(emitter.Key("nope"))
		assert.Equal(t, []string{"bar", "baz", "foo"}, e.Events())
	})

	t.Run("several selectors", func(t *testing.T) {
		e := newEmitter()
		e.RemoveAllListeners(emitter.Key("foo"), emitter.MustGlob("ba[r]"))
		assert.Equal(t, []string{"baz"}, e.Events())
	})

	t.Run("no selector clears everything", func(t *testing.T) {
		e := newEmitter()
		e.RemoveAllListeners()
		assert.Empty(t, e.Events())

		e.Emit(emitter.Key("foo"))
		e.EmitEvent(emitter.MustRegexp("."), nil)
		assert.False(t, e.HasEvent("foo"), "emit after clear must not recreate keys")
	})

	t.Run("nil pattern matches nothing", func(t *testing.T) {
		e := newEmitter()
		var p *emitter.Pattern
		e.RemoveEvent(p)
		assert.Len(t, e.Events(), 3)
	})
}
