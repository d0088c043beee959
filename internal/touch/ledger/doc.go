// Package ledger owns the history of every contact and every hardware switch
// event seen by the classifier.
//
// Responsibilities: per-contact sample streams, running stroke statistics
// (arc length, online radius mean/variance/max, isolation gaps), the time
// ordered switch event log with its trailing retention window, and the
// temporal queries the later stages ask (began/ended in a window,
// concurrency, oldest reclassifiable contact).
// Key types: Contact, BatchResult, Ledger.
//
// Dependency rule: ledger depends only on package touch.
package ledger
