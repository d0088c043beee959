// Package classifier is the top-level contact classification state machine.
//
// Every input (a contact batch, a switch event, elapsed time, a connection
// change) runs one synchronous pass: the ledger and cluster tracker are
// updated, the switch glitch debounce and offscreen-press deadlines are
// checked, staleness and auto-locking are applied, and when new evidence
// arrived the clusters are reclassified by an ordered cascade of named rules
// fed by the timing, geometry and handedness stages. Each pass returns the
// contacts whose label changed.
//
// Labels of locked contacts never change; Removed is terminal.
// Key types: Classifier, Config, Rule, View, Context, Diagnostic.
//
// Dependency rule: classifier is the only package that mutates the ledger
// and the tracker; the other stages only read snapshots passed to them.
package classifier
