// Package trace is nullguard's structured logging layer.
//
// A Tracer travels with the context of a patch pass and receives span and
// point events:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeClass, "class:com/example/Foo", 0)
//	defer span.End("")
//	trace.Point(ctx, trace.ScopeBehavior, "guard", "name is null")
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps of the ring buffer
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: one span per class
//   - LevelDebug: behaviors, guards and warnings
//
// # Storage
//
// StreamTracer writes each event as it arrives, RingTracer keeps the last N
// events for crash dumps, MultiTracer fans out to both.
package trace
