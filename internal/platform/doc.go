// Package platform provides the crash-safe file primitives used to move unit
// archives between lifecycle directories. Every write lands in a temporary
// file in the destination directory and is renamed into place, so a reader
// never observes a half-written archive, and moves fall back to copy-then-
// delete when a rename crosses filesystems.
package platform
