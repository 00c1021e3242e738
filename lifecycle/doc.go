// Package lifecycle drives a job from creation through review. The
// orchestrator walks an explicit phase table keyed by job status, where
// each step performs its side effects and names the next status, so every
// transition is independently testable and a crashed run can resume from
// whatever status the remote API reports.
//
// Waiting phases handle inbound messages concurrently: a reply is generated
// and sent for every new human message while the status transition is still
// awaited. The payment phase is advisory: its failures are logged, never
// fatal, because the human may release the work regardless and the run must
// reach review either way.
package lifecycle
