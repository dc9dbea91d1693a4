// Package utils holds small generic helpers shared across packages.
package utils

// Ptr returns a pointer to the given value. Handy for building
// partial-update structs in call sites and tests.
func Ptr[T any](v T) *T {
	return &v
}
