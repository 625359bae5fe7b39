// Package ptr provides helpers for creating pointers to values, mostly for
// populating optional configuration fields.
package ptr

// To returns a pointer to the given value.
func To[T any](v T) *T { return &v }
