// Package utils provides common utility functions for anki-sync.
// It includes helpers for converting loosely typed values (graph properties
// decoded from JSON or YAML) into strings, string slices, ints and booleans.
package utils
