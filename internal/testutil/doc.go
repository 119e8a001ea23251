// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing agent contexts, tools and output
// assertions. They are not intended for production usage.
package testutil
