// Package manifest reads the metadata of extension units from their archives.
// A unit archive is a zip file carrying a plugin.yaml entry; the entry is
// validated against an embedded JSON schema and turned into a UnitDescriptor
// with typed, validated fields. Versions are compared with semver semantics
// and fall back to lexical ordering so that every pair of versions is ordered.
package manifest
