// Package entry defines the content-addressed records held by a register.
//
// An Entry is a set of named field values together with its address, the
// hash of the canonical form of those fields. Two entries with identical
// field content always have the same address, which makes re-ingesting the
// same data idempotent.
package entry
