// Package rules implements the permission and validation rule registry.
//
// Rules are callbacks keyed by (type, action, field). A key with an empty
// field is a whole-object rule; a key with a field applies only to changes
// whose path joins to that field name. Every applicable rule must pass.
// Returning an error is the only way a rule can veto an operation.
//
// When no rule is registered for a whole-object key, the registry allows
// the operation unless it is in strict mode, in which case it denies
// (fail-closed). Field keys with no rules follow the configured
// FieldPolicy.
//
// The registry is safe for concurrent use. Registration takes a write lock;
// evaluation works on a snapshot taken under a read lock.
package rules
