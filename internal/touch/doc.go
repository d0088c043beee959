// Package touch holds the vocabulary shared by every stage of the contact
// classification pipeline.
//
// Stages, leaves first:
//
//	ledger      per-contact sample history and the switch event log
//	cluster     spatial grouping of concurrent contacts, staleness, ordering
//	timing      switch event to contact attribution (pen/eraser probability)
//	geometry    shape-only pen likelihood for a single stroke
//	handedness  pen/palm location estimate and handedness direction
//	classifier  the orchestrator that owns all of the above
//
// Dependency rule: a stage may import touch and any stage listed above it,
// never one listed below it. Only the classifier mutates labels.
package touch
