// Package changes computes and applies structural diffs between object
// states.
//
// Every mutation of an object flows through a Changeset:
//
//	[current] + [overlay]      → Compute → [changeset]
//	[current] + [changeset]    → Apply   → [updated]
//
// Compute accepts either a partial object (deep-merged onto the current
// state, then diffed) or an explicit changeset, which is used verbatim so
// PATCH-style callers can submit their own diff.
//
// Apply never mutates its input. It deep-copies the current object and
// applies each change in order. In tolerant mode (the default) a path that
// does not exist is created; in strict mode an unresolvable path is an
// InvalidInput error.
//
// Diff output is deterministic: object keys are visited in canonical order,
// array shrinkage is emitted from the highest index down and array growth
// from the lowest index up, so that applying the changes in sequence
// reproduces the target.
package changes
