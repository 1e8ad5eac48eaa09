// Package emitter provides a synchronous listener registry that a host type
// composes to gain an event interface.
//
// A host embeds Emitter; the zero value is ready to use and the registry is
// allocated on first use:
//
//	type Player struct {
//	    emitter.Emitter
//	    name string
//	}
//
//	p := &Player{name: "one"}
//	p.On(emitter.Key("ready"), emitter.NewListener(func(args ...any) any {
//	    fmt.Println("ready", args)
//	    return nil
//	}))
//	p.Emit(emitter.Key("ready"), 1, 2)
//
// Listeners are registered against a Selector, which is either a literal Key
// or a *Pattern. A literal key is created on first registration. A pattern
// only selects keys that already exist at the time of the call, so keys must
// be defined with DefineEvent before a pattern subscription can reach them:
//
//	e.DefineEvents(emitter.Key("job.started"), emitter.Key("job.done"))
//	e.On(emitter.MustGlob("job.*"), audit)
//
// Dispatch is synchronous. EmitEvent runs every matched listener in
// insertion order on the caller's goroutine and returns only after the last
// one finished. Each key is dispatched from a snapshot, so listeners may add
// or remove listeners (including themselves) while a pass is running;
// additions take effect on the next emit.
//
// A listener registered with Once is removed before it is invoked. Any
// listener whose return value equals the emitter's once-return value (true
// unless changed with SetOnceReturnValue) is removed after it returns.
//
// An Emitter is not safe for concurrent use. Hosts that share one across
// goroutines must serialise access.
package emitter
