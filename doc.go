// Package rig computes dependency construction plans.
//
// Given a root node (a constructor or any other callable) and an
// [Introspector] that reports, for each of a node's parameters, the ordered
// candidate nodes that could satisfy it, rig produces a [Plan]: a
// deterministic, cycle-free, topologically ordered sequence of construction
// steps. Executing the steps in order (see [Build]) produces every value
// needed to invoke the root.
//
// Planning is governed by three policies, all scoped to a single call:
//
//  1. Injectable nodes are resolved recursively: their own parameters are
//     introspected and planned.
//  2. Externally provided nodes are opaque leaves. Their parameters are never
//     inspected; the caller promises to supply an instance at build time.
//  3. Overrides substitute one node for another during candidate selection,
//     either once per occurrence or transitively through the replacement's own
//     dependencies.
//
// For each parameter the first candidate accepted by a policy wins; ties are
// broken by declaration order. This is deliberate: candidate order is the
// caller's priority order, not an accident of iteration.
//
// A plan either covers every parameter of every node it contains, or the call
// fails with an [*UnresolvedError] describing each unresolved argument. The
// sole exception is the root: planned with partial completion (the default),
// its unresolvable parameters are silently left for the caller to pass by
// hand. Dependencies of the root never enjoy this privilege: a chosen but
// unplannable dependency is always an error.
//
// The planner is a pure computation. It performs no I/O, keeps no state
// between calls, and is safe for concurrent use as long as the supplied
// policies are.
package rig
