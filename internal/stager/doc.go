// Package stager owns every filesystem mutation of the lifecycle
// directories: promoting staged archives into the external root, moving
// archives to and from the uninstalled root, and committing uninstalls at
// startup.
//
// Every move keeps at least one complete copy of an archive on disk. A
// replaced archive is deleted only after its successor is in place.
package stager
