// Package isolation provides the execution contexts plugins run in and the
// table of entry point factories that instantiate them.
//
// Every base unit gets its own Context whose parent is the host context.
// A context resolves names against its own exports first and then against
// its parent chain, never against a sibling. Extension units attach to
// their base's context instead of receiving one.
//
// Factories are registered process-wide, usually from init functions:
//
//	func init() {
//		isolation.Register("com.example.Scanner", newScanner)
//	}
package isolation
