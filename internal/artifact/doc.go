// Package artifact holds the value types describing unit archives on disk
// (locations, lazily hashed file handles, hash pairs) and the Packager that
// derives the compressed sibling used for transfer and verification.
package artifact
