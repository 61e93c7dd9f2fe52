// Package idgen provides short, URL-safe document identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DocumentPrefix is prepended to every generated document identifier.
const DocumentPrefix = "doc-"

// Alphabet is the character set of the random part of an identifier.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// Document returns a new document identifier such as "doc-Vq3xTb0aLm9Z".
func Document() (string, error) {
	return WithPrefix(DocumentPrefix)
}

// WithPrefix returns a new identifier with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// IsDocument reports whether id has the shape of a generated document
// identifier. Client-supplied identifiers may look the same.
func IsDocument(id string) bool {
	rest, ok := strings.CutPrefix(id, DocumentPrefix)
	if !ok || len(rest) != Length {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if !strings.ContainsRune(Alphabet, rune(rest[i])) {
			return false
		}
	}
	return true
}
