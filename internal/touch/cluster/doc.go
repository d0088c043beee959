// Package cluster groups concurrently active contacts into clusters, the
// provisional unit the classifier labels as one instrument.
//
// Responsibilities: nearest-cluster assignment of new contacts, exponentially
// smoothed cluster centers, the active -> stale -> removed lifecycle,
// edge-thumb detection, and the spatial ordering of active clusters along the
// shortest open path (exact up to ExactOrderingLimit clusters, farthest-point
// insertion above it) used to find the pen end and interior palms.
// Key types: Cluster, Tracker, Ordering.
//
// Dependency rule: cluster may depend on touch and ledger, never on timing,
// geometry, handedness or classifier. Labels and odds are written here only
// by the classifier through the exported fields.
package cluster
