// Package resolver turns the approved candidate set into a load order.
//
// A unit loads only when its base unit and every required unit at a
// sufficient version load too. Units that fail this test are skipped with
// an UnresolvedDependency failure rather than aborting the load, and the
// check repeats until no further unit drops out, so an extension of a
// skipped base is skipped as well. Survivors are ordered topologically
// with ties broken by ascending key.
package resolver
