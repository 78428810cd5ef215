// Package stage defines the units a photoflow pipeline is composed of and
// the rules for evaluating them over lazy item streams.
//
// A Stage exposes Filter and Map. Apply evaluates a stage over a stream:
// for each item, in arrival order, Map runs exactly when Filter accepts,
// the stage name is appended to the item's provenance, and rejected items
// never reappear downstream. Item-local faults are logged, counted and
// dropped (or abort the run, depending on Policy); configuration and
// systemic faults always propagate.
//
// A MergeStage combines several streams into one. The built-in merges are
// concat, interleave, batch (windowing) and join (key correlation).
//
// Stages are resolved by name through an explicit Registry built at
// startup. Adding a stage means implementing Stage and registering one
// constructor; the engine needs no change.
package stage
