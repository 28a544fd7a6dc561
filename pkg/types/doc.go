// Package types defines the Cookbook and table interfaces, the recipe entity
// types with their validation rules, and the structured errors shared by every
// recipebox backend.
//
// Entities are plain structs. Validate methods check field-level invariants
// (required fields, numeric ranges, enumerations) before a backend touches the
// database; the backend enforces the relational invariants (uniqueness,
// references, cascades) inside its write transactions.
package types
