// Package workflow implements the Temporal workflow that drives one council
// exchange from user question to settled payments.
//
// The workflow is a thin deterministic sequencer: every external effect
// (LLM calls, persistence, event emission) lives in activities, and the
// workflow only decides which stage runs next. State is re-derived from the
// exchange checkpoint the store hands back after every stage, which is also
// what makes resume trivial: a restarted run begins at whatever stage the
// last checkpoint recorded, with no stage repeated.
//
// Workflow code must stay deterministic: no random numbers, no system time,
// no I/O outside activities.
package workflow
