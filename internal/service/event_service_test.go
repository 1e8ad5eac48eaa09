package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaharia-lab/emitter/internal/eventbus"
	"github.com/shaharia-lab/emitter/internal/storage"
	"github.com/shaharia-lab/emitter/internal/storage/mocks"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*storage.Emission
	types  []string
}

func (p *recordingPublisher) Publish(eventType string, e *storage.Emission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	p.events = append(p.events, e)
}

type recordingMetrics struct {
	emits       map[string]int
	invocations int
	subscribers int
	events      int
	dropped     int
}

func (m *recordingMetrics) ObserveEmit(kind string, n int) {
	if m.emits == nil {
		m.emits = map[string]int{}
	}
	m.emits[kind]++
	m.invocations += n
}
func (m *recordingMetrics) SetSubscribers(n int) { m.subscribers = n }
func (m *recordingMetrics) SetEvents(n int)      { m.events = n }
func (m *recordingMetrics) JournalDropped()      { m.dropped++ }

func newTestEventService(t *testing.T, opts Options) EventService {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewEventService(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func emit(t *testing.T, svc EventService, selector, pattern string, args ...any) *EmitResult {
	t.Helper()
	res, err := svc.Emit(context.Background(), EmitRequest{
		SelectorSpec: SelectorSpec{Selector: selector, Pattern: pattern},
		Args:         args,
	})
	require.NoError(t, err)
	return res
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestDefineAndListEvents(t *testing.T) {
	m := &recordingMetrics{}
	svc := newTestEventService(t, Options{Metrics: m})
	ctx := context.Background()

	require.NoError(t, svc.DefineEvents(ctx, []string{"job.start", "job.done"}))
	_, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.done"}})
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EventInfo{{Key: "job.start", Listeners: 0}, {Key: "job.done", Listeners: 1}}, events)
	assert.Equal(t, 2, m.events)
}

func TestDefineEvents_Validation(t *testing.T) {
	svc := newTestEventService(t, Options{})

	var verr *ValidationError
	assert.True(t, errors.As(svc.DefineEvents(context.Background(), nil), &verr))
	assert.True(t, errors.As(svc.DefineEvents(context.Background(), []string{"ok", ""}), &verr))
	assert.Equal(t, "keys[1]", verr.Field)
}

func TestRemoveEvent(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	require.NoError(t, svc.DefineEvents(ctx, []string{"bar", "baz", "foo"}))

	require.NoError(t, svc.RemoveEvent(ctx, SelectorSpec{Selector: "^ba", Pattern: "regexp"}))
	events, _ := svc.ListEvents(ctx)
	assert.Equal(t, []EventInfo{{Key: "foo"}}, events)

	require.NoError(t, svc.RemoveEvent(ctx, SelectorSpec{}))
	events, _ = svc.ListEvents(ctx)
	assert.Empty(t, events)

	var verr *ValidationError
	assert.True(t, errors.As(svc.RemoveEvent(ctx, SelectorSpec{Selector: "(", Pattern: "regexp"}), &verr))
}

// ---------------------------------------------------------------------------
// Subscribers
// ---------------------------------------------------------------------------

func TestCreateSubscriber(t *testing.T) {
	m := &recordingMetrics{}
	svc := newTestEventService(t, Options{Metrics: m})

	sub, err := svc.CreateSubscriber(context.Background(), SubscriberRequest{
		SelectorSpec: SelectorSpec{Selector: "tick"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, []string{"tick"}, sub.Keys)
	assert.True(t, sub.Active())
	assert.Equal(t, fixedNow, sub.CreatedAt)
	assert.Equal(t, 1, m.subscribers)
}

func TestCreateSubscriber_PatternAttachesToExistingKeysOnly(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()

	early, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.*", Pattern: "glob"}})
	require.NoError(t, err)
	assert.Empty(t, early.Keys)
	assert.False(t, early.Active())

	require.NoError(t, svc.DefineEvents(ctx, []string{"job.a", "job.b", "user.a"}))
	late, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.*", Pattern: "glob"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"job.a", "job.b"}, late.Keys)
}

func TestCreateSubscriber_Errors(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	_, err := svc.CreateSubscriber(ctx, SubscriberRequest{ID: "dup", SelectorSpec: SelectorSpec{Selector: "a"}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    SubscriberRequest
		target any
	}{
		{"missing selector", SubscriberRequest{}, new(*ValidationError)},
		{"bad pattern type", SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "a", Pattern: "xpath"}}, new(*ValidationError)},
		{"bad regexp", SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "(", Pattern: "regexp"}}, new(*ValidationError)},
		{"negative max", SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "a"}, MaxDeliveries: -1}, new(*ValidationError)},
		{"duplicate id", SubscriberRequest{ID: "dup", SelectorSpec: SelectorSpec{Selector: "a"}}, new(*ConflictError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSubscriber(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestGetAndDeleteSubscriber(t *testing.T) {
	m := &recordingMetrics{}
	svc := newTestEventService(t, Options{Metrics: m})
	ctx := context.Background()
	require.NoError(t, svc.DefineEvents(ctx, []string{"a.1", "a.2"}))

	sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{ID: "s1", SelectorSpec: SelectorSpec{Selector: "^a", Pattern: "regexp"}})
	require.NoError(t, err)
	assert.Len(t, sub.Keys, 2)

	got, err := svc.GetSubscriber(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	require.NoError(t, svc.DeleteSubscriber(ctx, "s1"))
	assert.Equal(t, 0, m.subscribers)

	events, _ := svc.ListEvents(ctx)
	for _, ev := range events {
		assert.Zero(t, ev.Listeners, "listener detached from %s", ev.Key)
	}

	var nf *NotFoundError
	_, err = svc.GetSubscriber(ctx, "s1")
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, svc.DeleteSubscriber(ctx, "s1"), &nf)
	_, err = svc.Deliveries(ctx, "s1", false)
	assert.ErrorAs(t, err, &nf)
}

func TestListSubscribers_CreationOrder(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		_, err := svc.CreateSubscriber(ctx, SubscriberRequest{ID: id, SelectorSpec: SelectorSpec{Selector: "k"}})
		require.NoError(t, err)
	}
	require.NoError(t, svc.DeleteSubscriber(ctx, "a"))

	subs, err := svc.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "c", subs[0].ID)
	assert.Equal(t, "b", subs[1].ID)
}

// ---------------------------------------------------------------------------
// Emit
// ---------------------------------------------------------------------------

func TestEmit_DeliversToSubscribers(t *testing.T) {
	pub := &recordingPublisher{}
	m := &recordingMetrics{}
	svc := newTestEventService(t, Options{Publisher: pub, Metrics: m})
	ctx := context.Background()

	sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}})
	require.NoError(t, err)

	res := emit(t, svc, "tick", "", 1, "two")
	assert.Equal(t, []string{"tick"}, res.MatchedKeys)
	assert.Equal(t, 1, res.Invocations)
	assert.Equal(t, "key", res.Kind)
	assert.Equal(t, fixedNow, res.EmittedAt)

	deliveries, err := svc.Deliveries(ctx, sub.ID, false)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, res.ID, deliveries[0].EmissionID)
	assert.Equal(t, []any{1.0, "two"}, deliveries[0].Args, "arguments are JSON-normalised")

	require.Len(t, pub.events, 1)
	assert.Equal(t, eventbus.TypeEmission, pub.types[0])
	assert.Equal(t, res.ID, pub.events[0].ID)
	assert.Equal(t, "api", pub.events[0].Source)
	assert.Equal(t, 1, pub.events[0].Invocations)

	assert.Equal(t, map[string]int{"key": 1}, m.emits)
	assert.Equal(t, 1, m.invocations)
}

func TestEmit_UnknownKeyDoesNotCreate(t *testing.T) {
	svc := newTestEventService(t, Options{})

	res := emit(t, svc, "ghost", "")
	assert.Empty(t, res.MatchedKeys)
	assert.Zero(t, res.Invocations)

	events, _ := svc.ListEvents(context.Background())
	assert.Empty(t, events)
}

func TestEmit_Pattern(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	require.NoError(t, svc.DefineEvents(ctx, []string{"job.b", "job.a", "user.a"}))
	_, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.a"}})
	require.NoError(t, err)
	_, err = svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.b"}})
	require.NoError(t, err)

	res := emit(t, svc, "job.*", "glob")
	assert.Equal(t, []string{"job.b", "job.a"}, res.MatchedKeys)
	assert.Equal(t, 2, res.Invocations)
	assert.Equal(t, "glob", res.Kind)
}

func TestEmit_OnceSubscriber(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}, Once: true})
	require.NoError(t, err)

	emit(t, svc, "tick", "")
	second := emit(t, svc, "tick", "")
	assert.Zero(t, second.Invocations)

	got, err := svc.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Delivered)
	assert.False(t, got.Active())
}

func TestEmit_MaxDeliveriesDetachesThroughOnceReturnValue(t *testing.T) {
	for _, sentinel := range []any{true, "done", 42, nil} {
		t.Run(fmt.Sprintf("%v", sentinel), func(t *testing.T) {
			svc := newTestEventService(t, Options{})
			ctx := context.Background()
			_, err := svc.SetOnceReturnValue(ctx, sentinel)
			require.NoError(t, err)

			sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}, MaxDeliveries: 2})
			require.NoError(t, err)
			other, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}})
			require.NoError(t, err)

			for i := 0; i < 4; i++ {
				emit(t, svc, "tick", "", i)
			}

			got, _ := svc.GetSubscriber(ctx, sub.ID)
			assert.Equal(t, 2, got.Delivered)
			assert.False(t, got.Active())

			kept, _ := svc.GetSubscriber(ctx, other.ID)
			assert.Equal(t, 4, kept.Delivered, "an uncapped subscriber never matches the once-return value")
			assert.True(t, kept.Active())
		})
	}
}

func TestEmit_MaxDeliveriesAcrossPatternKeys(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	require.NoError(t, svc.DefineEvents(ctx, []string{"job.a", "job.b", "job.c"}))
	sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "job.*", Pattern: "glob"}, MaxDeliveries: 1})
	require.NoError(t, err)

	res := emit(t, svc, "job.*", "glob")
	assert.Equal(t, 1, res.Invocations)

	got, _ := svc.GetSubscriber(ctx, sub.ID)
	assert.Equal(t, 1, got.Delivered)
	assert.Empty(t, got.Keys)
}

func TestEmit_InboxBounded(t *testing.T) {
	svc := newTestEventService(t, Options{InboxSize: 2})
	ctx := context.Background()
	sub, err := svc.CreateSubscriber(ctx, SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		emit(t, svc, "tick", "", i)
	}

	deliveries, err := svc.Deliveries(ctx, sub.ID, true)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, []any{1.0}, deliveries[0].Args, "oldest delivery is dropped")
	assert.Equal(t, []any{2.0}, deliveries[1].Args)

	got, _ := svc.GetSubscriber(ctx, sub.ID)
	assert.Equal(t, 1, got.Dropped)
	assert.Equal(t, 3, got.Delivered)
	assert.Zero(t, got.Pending, "drained")
}

func TestEmit_InvalidSelector(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestEventService(t, Options{Publisher: pub})

	_, err := svc.Emit(context.Background(), EmitRequest{SelectorSpec: SelectorSpec{Selector: "[", Pattern: "regexp"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, pub.events)
}

func TestEmit_Span(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	svc := newTestEventService(t, Options{Tracer: provider.Tracer("test")})
	_, err := svc.CreateSubscriber(context.Background(), SubscriberRequest{SelectorSpec: SelectorSpec{Selector: "tick"}})
	require.NoError(t, err)

	emit(t, svc, "tick", "")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "emitter.emit", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "tick", attrs["emitter.selector"])
	assert.Equal(t, "key", attrs["emitter.selector_kind"])
	assert.EqualValues(t, 1, attrs["emitter.invocations"])
}

// ---------------------------------------------------------------------------
// Once return value
// ---------------------------------------------------------------------------

func TestSetOnceReturnValue(t *testing.T) {
	svc := newTestEventService(t, Options{})
	ctx := context.Background()
	assert.Equal(t, true, svc.OnceReturnValue(ctx))

	v, err := svc.SetOnceReturnValue(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, 42.0, svc.OnceReturnValue(ctx))

	_, err = svc.SetOnceReturnValue(ctx, map[string]any{"a": 1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "once_return_value", verr.Field)
	assert.Equal(t, 42.0, svc.OnceReturnValue(ctx), "rejected value leaves the old one in place")
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

func TestJournal(t *testing.T) {
	store := new(mocks.MockEmissionStore)
	want := []*storage.Emission{{ID: "e1"}}
	filter := storage.EmissionFilter{Selector: "tick", Limit: 5}
	store.On("List", mock.Anything, filter).Return(want, nil)

	svc := newTestEventService(t, Options{Journal: store})
	got, err := svc.Journal(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	store.AssertExpectations(t)
}

func TestJournal_Error(t *testing.T) {
	store := new(mocks.MockEmissionStore)
	store.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("db error"))

	svc := newTestEventService(t, Options{Journal: store})
	_, err := svc.Journal(context.Background(), storage.EmissionFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing emissions")
}

func TestJournal_Disabled(t *testing.T) {
	svc := newTestEventService(t, Options{})
	got, err := svc.Journal(context.Background(), storage.EmissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
