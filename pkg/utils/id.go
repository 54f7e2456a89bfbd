package utils

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a random UUID string
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustGenerateID generates a random UUID string, panicking on entropy failure
func MustGenerateID() string {
	return uuid.NewString()
}

// MatchPattern reports whether a key matches a glob-style pattern.
// A bare "*" or empty pattern matches everything.
func MatchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == key
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
