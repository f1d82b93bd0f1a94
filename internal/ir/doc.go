// Package ir provides the shared data model for objgate.
//
// This package contains type definitions and value helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// object model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Objects are open-ended maps of JSON-compatible values
//   - Every mutation is expressed as a Changeset, even full replacement
//   - Objects are copied, never shared, across operation boundaries
//   - Errors crossing package boundaries are *Error with a Kind
package ir
