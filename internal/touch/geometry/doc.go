// Package geometry scores how pen-like a single stroke is from its shape
// alone.
//
// A stroke's samples are reduced to a vector of scale-normalized statistics
// (derivative norms in time and arc-length parameterizations, interpolation
// residuals, sampling regularity). Ten of them are log transformed into the
// chosen scores consumed by three calibrated tests: Neyman-Pearson voting,
// a Bayes log-likelihood ratio and an Adaboost ensemble. A convex
// combination of the three gives a pen likelihood in [0, 1].
//
// Calibration tables are versioned JSON embedded in the binary.
// Key types: Stroke, Features, Calibration, Classifier, Result.
//
// Dependency rule: geometry depends only on touch and ledger.
package geometry
