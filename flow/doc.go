// Package flow declares, validates and runs photoflow stream topologies.
//
// A Spec names streams. Each stream either continues another stream
// ("from") or merges several ("merge"), then applies its own stages in
// order. The implicit stream "source" is the output of the directory
// source after the prelude stages. Streams may only reference streams
// declared before them, so a valid Spec is acyclic by construction.
//
//	prelude: [extra-formats]
//	streams:
//	  - name: wide
//	    from: source
//	    stages: [landscape]
//	  - name: tall
//	    from: source
//	    stages: [portrait, dimensions]
//	    buffer: 16
//	  - name: all
//	    merge: {policy: interleave, inputs: [wide, tall]}
//	output: all
//
// A stream read by several consumers is branched automatically: each
// consumer pulls at its own pace and receives its own copy of every item.
// A stream with a positive buffer is evaluated in its own goroutine, up to
// that many items ahead of its consumer, without changing its order.
package flow
