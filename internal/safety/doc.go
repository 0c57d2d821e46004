// Package safety documents the threat model the verified-loop orchestrator
// defends against. It holds no runtime logic of its own; each mitigation it
// describes lives in the package that implements it (internal/session,
// internal/guardrail, internal/loop, internal/signal). Keeping the threat
// catalog here gives every mitigation a single cross-referenced home instead
// of scattering the "why" across the packages that enforce it.
//
// Adapted from the teacher's internal/safety/doc.go T1-T8 catalog (same
// structure: numbered threats, each with a one-paragraph scenario and its
// mitigations) — rewritten for an orchestrator whose trust boundary is "the
// agent under management," not a multi-hook CLI plugin defending shell
// injection and git history.
//
// # Threat Model
//
// T1 - Signal Forgery: an agent could emit a completion marker for a phase
// it never actually attempted, or echo a marker it read from an earlier
// transcript. Mitigation: every signal must carry the run's current session
// token, generated fresh per session (internal/session.GenerateToken),
// embedded in that session's prompts and stored in its session.json (see
// T8); internal/signal rejects any marker whose token does not match
// exactly.
//
// T2 - Scope Escape During Test Writing: the test-writing phase is the only
// phase allowed to touch the working tree under a declared constraint (test
// paths only); an agent could use that phase to slip in implementation
// changes disguised as test setup. Mitigation: internal/guardrail snapshots
// the tree before the phase and reverts anything outside the configured
// glob allow-list after, regardless of what the agent's signal claims.
//
// T3 - Task-Status Tampering: the task-status artifact is the durable
// record of which tasks have passed; a corrupted or hand-edited copy could
// make a failed task appear to have passed review. Mitigation:
// internal/session pairs every write with a SHA-256 digest of the canonical
// document and fails closed (ErrTampering) on any read where the digest and
// content disagree, rather than trusting a plausible-looking file.
//
// T4 - Runaway Iteration: an agent that never emits a valid signal, or an
// IMPL/REVIEW cycle that oscillates forever, could consume unbounded agent
// invocations. Mitigation: internal/loop enforces a single iteration budget
// shared across IMPL, TEST, FIX, and REVIEW retries for a task; exceeding it
// fails the task deterministically rather than retrying indefinitely.
//
// T5 - Fatal Gate Bypass: if a quality gate marked fatal could be skipped or
// its failure ignored, a task could reach REVIEW without actually building
// or passing its tests. Mitigation: internal/gate halts the remaining gate
// sequence on the first fatal failure and internal/loop never transitions
// GATES to REVIEW unless every fatal gate in the sequence passed.
//
// T6 - Review Rubber-Stamping: a review phase with write access to the tree
// could "fix" what it is supposed to be judging, making rejection
// meaningless. Mitigation: the review role's prompt (internal/prompt) is
// explicitly read-only. internal/loop's REVIEW phase takes no snapshot and
// invokes no guardrail revert, so file changes a review invocation makes
// are not reverted; the read-only rule rests on the prompt alone.
//
// T7 - Agent Unavailability Masquerading as Task Failure: a missing or
// non-executable agent binary looks identical to a task's agent genuinely
// failing, unless the two are distinguished at the exit-code boundary.
// Mitigation: internal/executor reports subprocess-spawn failure as
// ErrSpawn, a distinct error from a non-zero exit code, which
// internal/coordinator maps to its own exit code (8) rather than folding it
// into a generic task failure (3).
//
// T8 - Stale Session Reuse: replaying an old session's recorded token
// against a live run (for example, from a previous run's saved logs) should
// never let an agent masquerade as the current run. Mitigation: a fresh
// token is generated at the start of every session (internal/session) and
// stored only in that run's session.json; an agent output carrying a prior
// run's token fails internal/signal.Expect's exact-match check just like
// any other forged token.
package safety
