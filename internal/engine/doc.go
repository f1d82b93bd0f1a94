// Package engine orchestrates object operations across the change engine,
// the rule registry and the multi-driver store.
//
// Every public operation is a fixed pipeline of stages. A failing stage
// short-circuits the rest and its error is returned unchanged:
//
//	create: factory -> compute -> apply -> check type -> check fields -> put -> notify
//	get:    fetch -> check type
//	update: fetch (or factory) -> compute -> apply -> check type -> check fields -> put -> notify
//	delete: fetch -> check type -> delete
//	query:  driver query -> check type
//	search: driver search -> check type
//	getLog: check type -> read log
//
// Thread-safety model:
//   - An Engine is safe for concurrent use once constructed
//   - Each call owns its ir.Operation; rules receive it read-only
//   - Concurrent writes to the same id are last-write-wins at the drivers
//
// Notifications are sent only after persistence succeeds. A panicking
// notifier is recovered and logged; it never changes the operation result.
package engine
