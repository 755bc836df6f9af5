// Package trace records what the checker is doing: driver runs, analysis
// passes, individual units and, at the most verbose level, each event of a
// unit script as it is applied.
//
// Enable tracing from the CLI:
//
//	refbind check --trace=- --trace-level=detail ./units
//
// Tracers:
//
//   - Nop: disabled, costs nothing
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last N events for a dump after a failure
//   - MultiTracer: fan-out
//
// Levels map onto scopes: phase emits driver and pass spans, detail adds
// units, debug adds script events.
//
// Tracers travel in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeUnit, "analyze", 0)
//	defer span.End("")
package trace
