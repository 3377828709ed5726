// Package storage persists jiratrack's local state as one JSON document per
// key in a small SQLite database.
//
// Every key has a registered default that Get returns while nothing has been
// stored, so callers never have to special-case a fresh install. Values are
// replaced wholesale on Set; there is no partial update.
package storage
