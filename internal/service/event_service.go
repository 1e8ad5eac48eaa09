package service

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaharia-lab/emitter/emitter"
	"github.com/shaharia-lab/emitter/internal/eventbus"
	"github.com/shaharia-lab/emitter/internal/metrics"
	"github.com/shaharia-lab/emitter/internal/storage"
)

const (
	tracerName       = "github.com/shaharia-lab/emitter/internal/service"
	defaultInboxSize = 256
	defaultSource    = "api"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// allKeys matches every key in the registry.
var allKeys = emitter.MustRegexp("")

// EventService defines the business logic interface for the shared event channel.
type EventService interface {
	DefineEvents(ctx context.Context, keys []string) error
	RemoveEvent(ctx context.Context, spec SelectorSpec) error
	ListEvents(ctx context.Context) ([]EventInfo, error)

	CreateSubscriber(ctx context.Context, req SubscriberRequest) (*Subscriber, error)
	GetSubscriber(ctx context.Context, id string) (*Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error
	ListSubscribers(ctx context.Context) ([]*Subscriber, error)
	Deliveries(ctx context.Context, id string, drain bool) ([]Delivery, error)

	Emit(ctx context.Context, req EmitRequest) (*EmitResult, error)

	SetOnceReturnValue(ctx context.Context, v any) (any, error)
	OnceReturnValue(ctx context.Context) any

	Journal(ctx context.Context, filter storage.EmissionFilter) ([]*storage.Emission, error)
}

// Options configures an event service. Zero fields fall back to defaults.
type Options struct {
	Journal   storage.EmissionStore
	Publisher EventPublisher
	Metrics   metrics.Recorder
	Tracer    trace.Tracer
	InboxSize int
	Now       func() time.Time
}

// retain is returned by subscriber listeners that should stay attached. No
// decoded once-return value can ever be of this type.
type retain struct{}

type subscriber struct {
	Subscriber
	listener *emitter.Listener
	inbox    []Delivery
}

// eventService hosts a single registry. Every registry access, including the
// listener callbacks run during dispatch, happens with mu held.
type eventService struct {
	emitter.Emitter

	mu          sync.Mutex
	subscribers map[string]*subscriber
	order       []string
	current     *storage.Emission
	invocations int

	journal   storage.EmissionStore
	publisher EventPublisher
	metrics   metrics.Recorder
	tracer    trace.Tracer
	inboxSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewEventService returns an EventService with an empty registry.
func NewEventService(opts Options, logger *slog.Logger) EventService {
	s := &eventService{
		subscribers: make(map[string]*subscriber),
		journal:     opts.Journal,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		inboxSize:   opts.InboxSize,
		now:         opts.Now,
		logger:      logger,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.inboxSize <= 0 {
		s.inboxSize = defaultInboxSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.Emitter.SetLogger(logger)
	return s
}

func (s *eventService) DefineEvents(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return invalidField("keys", "at least one key is required")
	}
	for i, k := range keys {
		if k == "" {
			return invalidField(fmt.Sprintf("keys[%d]", i), "key must not be empty")
		}
	}

	s.mu.Lock()
	s.Emitter.DefineEvents(emitter.Keys(keys...)...)
	n := len(s.Emitter.Events())
	s.mu.Unlock()

	s.metrics.SetEvents(n)
	s.logger.Info("events defined", "keys", keys)
	return nil
}

// RemoveEvent removes the keys the selector resolves to. An empty spec clears
// the whole registry.
func (s *eventService) RemoveEvent(_ context.Context, spec SelectorSpec) error {
	var sel emitter.Selector
	if spec.Selector != "" || spec.Pattern != "" {
		parsed, err := ParseSelector(spec)
		if err != nil {
			return err
		}
		sel = parsed
	}

	s.mu.Lock()
	s.Emitter.RemoveEvent(sel)
	n := len(s.Emitter.Events())
	s.mu.Unlock()

	s.metrics.SetEvents(n)
	s.logger.Info("events removed", "selector", spec.Selector, "pattern", spec.Pattern)
	return nil
}

func (s *eventService) ListEvents(_ context.Context) ([]EventInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.Emitter.Events()
	out := make([]EventInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, EventInfo{Key: k, Listeners: len(s.Emitter.GetListeners(emitter.Key(k)))})
	}
	return out, nil
}

func (s *eventService) CreateSubscriber(_ context.Context, req SubscriberRequest) (*Subscriber, error) {
	sel, err := ParseSelector(req.SelectorSpec)
	if err != nil {
		return nil, err
	}
	if req.MaxDeliveries < 0 {
		return nil, invalidField("max_deliveries", "must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, exists := s.subscribers[id]; exists {
		return nil, &ConflictError{Resource: "subscriber", ID: id}
	}

	sub := &subscriber{Subscriber: Subscriber{
		ID:            id,
		Selector:      req.Selector,
		Pattern:       req.Pattern,
		Once:          req.Once,
		MaxDeliveries: req.MaxDeliveries,
		CreatedAt:     s.now().UTC(),
	}}
	sub.listener = emitter.NewListener(s.deliver(sub))

	if err := s.Emitter.Subscribe(sel, emitter.Wrapped{Listener: sub.listener, Once: req.Once}); err != nil {
		return nil, subscribeError(id, err)
	}
	s.subscribers[id] = sub
	s.order = append(s.order, id)

	s.metrics.SetSubscribers(len(s.subscribers))
	s.metrics.SetEvents(len(s.Emitter.Events()))

	out := s.snapshot(sub)
	s.logger.Info("subscriber created", "id", id, "selector", req.Selector, "pattern", req.Pattern, "keys", out.Keys)
	return out, nil
}

func (s *eventService) GetSubscriber(_ context.Context, id string) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, &NotFoundError{Resource: "subscriber", ID: id}
	}
	return s.snapshot(sub), nil
}

func (s *eventService) DeleteSubscriber(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return &NotFoundError{Resource: "subscriber", ID: id}
	}
	s.Emitter.RemoveListener(allKeys, sub.listener)
	delete(s.subscribers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.metrics.SetSubscribers(len(s.subscribers))
	s.logger.Info("subscriber deleted", "id", id)
	return nil
}

func (s *eventService) ListSubscribers(_ context.Context) ([]*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Subscriber, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshot(s.subscribers[id]))
	}
	return out, nil
}

func (s *eventService) Deliveries(_ context.Context, id string, drain bool) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, &NotFoundError{Resource: "subscriber", ID: id}
	}
	out := make([]Delivery, len(sub.inbox))
	copy(out, sub.inbox)
	if drain {
		sub.inbox = nil
	}
	return out, nil
}

func (s *eventService) Emit(ctx context.Context, req EmitRequest) (*EmitResult, error) {
	_, span := s.tracer.Start(ctx, "emitter.emit", trace.WithAttributes(
		attribute.String("emitter.selector", req.Selector),
		attribute.String("emitter.selector_kind", req.Kind()),
	))
	defer span.End()

	sel, err := ParseSelector(req.SelectorSpec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid selector")
		return nil, err
	}
	args, err := normalizeArgs(req.Args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid arguments")
		return nil, &ValidationError{Field: "args", Err: err}
	}
	source := req.Source
	if source == "" {
		source = defaultSource
	}

	s.mu.Lock()
	em := &storage.Emission{
		ID:           uuid.NewString(),
		Selector:     req.Selector,
		SelectorKind: req.Kind(),
		Args:         args,
		MatchedKeys:  s.matchedKeys(sel),
		Source:       source,
		EmittedAt:    s.now().UTC(),
	}
	s.current, s.invocations = em, 0
	s.Emitter.EmitEvent(sel, args)
	em.Invocations = s.invocations
	s.current = nil
	events := len(s.Emitter.Events())
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("emitter.emission_id", em.ID),
		attribute.Int("emitter.matched_keys", len(em.MatchedKeys)),
		attribute.Int("emitter.invocations", em.Invocations),
	)
	span.SetStatus(codes.Ok, "")

	s.metrics.ObserveEmit(em.SelectorKind, em.Invocations)
	s.metrics.SetEvents(events)
	if s.publisher != nil {
		s.publisher.Publish(eventbus.TypeEmission, em)
	}

	s.logger.Debug("emitted", "id", em.ID, "selector", em.Selector, "kind", em.SelectorKind,
		"matched", em.MatchedKeys, "invocations", em.Invocations, "source", source)

	return &EmitResult{
		ID:          em.ID,
		Selector:    em.Selector,
		Kind:        em.SelectorKind,
		MatchedKeys: em.MatchedKeys,
		Invocations: em.Invocations,
		EmittedAt:   em.EmittedAt,
	}, nil
}

// SetOnceReturnValue normalises v the way a JSON round trip would and
// installs it. Values that cannot be compared, such as objects and arrays,
// are rejected.
func (s *eventService) SetOnceReturnValue(_ context.Context, v any) (any, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, &ValidationError{Field: "once_return_value", Err: err}
	}
	if norm != nil && !reflect.TypeOf(norm).Comparable() {
		return nil, invalidField("once_return_value", "must be a scalar or null")
	}

	s.mu.Lock()
	s.Emitter.SetOnceReturnValue(norm)
	s.mu.Unlock()

	s.logger.Info("once return value changed", "value", norm)
	return norm, nil
}

func (s *eventService) OnceReturnValue(_ context.Context) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Emitter.OnceReturnValue()
}

func (s *eventService) Journal(ctx context.Context, filter storage.EmissionFilter) ([]*storage.Emission, error) {
	if s.journal == nil {
		return []*storage.Emission{}, nil
	}
	out, err := s.journal.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing emissions: %w", err)
	}
	return out, nil
}

// deliver builds the listener callback for a subscriber. It runs during
// dispatch with mu held.
func (s *eventService) deliver(sub *subscriber) emitter.Callback {
	return func(args ...any) any {
		// A pattern subscriber may be attached to several keys; once the cap
		// is reached every remaining attachment detaches without delivering.
		if sub.MaxDeliveries > 0 && sub.Delivered >= sub.MaxDeliveries {
			return s.Emitter.OnceReturnValue()
		}

		s.invocations++
		d := Delivery{Args: append([]any{}, args...)}
		if s.current != nil {
			d.EmissionID = s.current.ID
			d.Selector = s.current.Selector
			d.DeliveredAt = s.current.EmittedAt
		}
		if len(sub.inbox) >= s.inboxSize {
			sub.inbox = sub.inbox[1:]
			sub.Dropped++
		}
		sub.inbox = append(sub.inbox, d)
		sub.Delivered++

		if sub.MaxDeliveries > 0 && sub.Delivered >= sub.MaxDeliveries {
			return s.Emitter.OnceReturnValue()
		}
		return retain{}
	}
}

// matchedKeys lists the existing keys sel resolves to, in dispatch order.
func (s *eventService) matchedKeys(sel emitter.Selector) []string {
	out := []string{}
	switch v := sel.(type) {
	case emitter.Key:
		if s.Emitter.HasEvent(v) {
			out = append(out, string(v))
		}
	case *emitter.Pattern:
		for _, k := range s.Emitter.Events() {
			if v.Match(k) {
				out = append(out, k)
			}
		}
	}
	return out
}

// snapshot copies the public view of sub, including the keys its listener is
// currently attached to.
func (s *eventService) snapshot(sub *subscriber) *Subscriber {
	out := sub.Subscriber
	out.Keys = []string{}
	for _, k := range s.Emitter.Events() {
		for _, l := range s.Emitter.FlattenListeners(s.Emitter.GetListeners(emitter.Key(k))) {
			if l == sub.listener {
				out.Keys = append(out.Keys, k)
				break
			}
		}
	}
	out.Pending = len(sub.inbox)
	return &out
}

func normalizeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := normalize(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// normalize maps v onto the types a JSON decoder produces, so values arriving
// from YAML, JSON or Go callers compare equal.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
