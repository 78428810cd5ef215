// Package item defines the unit of work that flows through a photoflow
// pipeline.
//
// An Item is a photo discovered by the source: a source reference (the path
// relative to the input root), content that is read on first access and
// cached until released, accumulated metadata and a provenance trail of the
// stages it has passed through. Merge stages produce composite items
// (batches, joined tuples and unmatched join leftovers) that own an ordered
// group of constituent items; constituents keep their own provenance.
//
// Items are not safe for use by several pipeline branches at once. A branch
// point hands every branch its own Clone.
package item
