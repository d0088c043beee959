// Package timing attributes hardware switch events to the contacts most
// likely to have produced them.
//
// The arrival error between a switch event and a candidate contact's begin
// (tip down) or end (tip up) is modelled as a Laplace distribution centred
// on the expected hardware latency. Bayes' rule over the eligible contacts,
// plus a null hypothesis for events no visible contact produced, yields a
// per-contact pen (and eraser) probability. Clusters combine member
// probabilities into an odds ratio; clusters competing for one event are
// resolved winner-take-all.
// Key types: Model, Classifier, ContactScore, ClusterScore.
//
// Dependency rule: timing may depend on touch, ledger and cluster.
package timing
