// Package sqlite persists replay runs: one row per run, the final label of
// every stroke, and the per-step cluster pen probability samples.
//
// The schema is embedded and applied with golang-migrate on NewRunStore.
package sqlite
