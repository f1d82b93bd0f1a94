// Package queryir provides the structured query representation shared by the
// storage drivers.
//
// The engine treats a query specification as opaque and passes it to the
// authoritative driver unmodified. Drivers that understand structured
// queries call Normalize to turn the caller's value into a Predicate:
//
//	nil                          → match everything
//	Predicate / Select           → used as is
//	{"name": "foo"}              → Equals{name, "foo"}
//	{"price": {"$gte": 10}}      → Compare{price, >=, 10}
//	{"tag": {"$exists": true}}   → Exists{tag}
//
// Query-language strings are not parsed here; Normalize rejects them with
// an InvalidInput error.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch on
// them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Compare:
//	case Exists:
//	case And:
//	}
//
// Field names are dotted paths ("dims.w"); numeric segments index arrays.
//
// Match evaluates a predicate in memory. Its semantics follow SQLite's
// json_extract comparisons so that the memory and sqlite drivers agree:
// a missing field never satisfies a comparison, null equality matches
// missing or null values, and values of different kinds order
// null < number/bool < string < container.
package queryir
