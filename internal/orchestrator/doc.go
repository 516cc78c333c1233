// Package orchestrator turns a task description plus an operating mode into
// a three-phase reasoning trace and a persisted experience record.
//
// Each execution walks a fixed state machine: started, planned, executed,
// reflected, persisted. Phases run strictly in order; every execution
// persists exactly one experience, success or failure, so callers are never
// left without a queryable record.
//
// Failures follow a two-tier policy. Structural failures (a missing
// provider credential, a failed or malformed remote call) abort the
// execution: the trace is finalized, a failure experience is persisted, and
// the error is returned to the caller. Internal errors inside the plan and
// reflect phases degrade into phase content instead: narration is
// best-effort, persistence is not.
//
// Each call builds its own trace; there is no shared "current execution"
// slot, so concurrent Execute calls are safe.
package orchestrator
