// Package upload filters candidate uploads against the spreadsheet
// extension allow-list before any network call is attempted.
package upload

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Partition splits candidate file names into accepted and rejected. The
// split is total and disjoint: every input name lands in exactly one side.
type Partition struct {
	Accepted []string
	Rejected []string
}

// Allowed reports whether name carries one of the allow-listed extensions.
// Matching is a case-insensitive suffix check.
func Allowed(name string, allowlist []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowlist {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Validate partitions names against the allow-list. It never fails; callers
// decide how to surface the rejected side.
func Validate(names []string, allowlist []string) Partition {
	p := Partition{Accepted: make([]string, 0, len(names)), Rejected: []string{}}
	for _, name := range names {
		if Allowed(name, allowlist) {
			p.Accepted = append(p.Accepted, name)
		} else {
			p.Rejected = append(p.Rejected, name)
		}
	}
	return p
}

// CollectDir flattens a directory tree into candidate paths and validates
// them. Accepted entries are full paths relative to root's parent, so they
// can be opened directly.
func CollectDir(root string, allowlist []string) (Partition, error) {
	names := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		names = append(names, path)
		return nil
	})
	if err != nil {
		return Partition{}, err
	}
	return Validate(names, allowlist), nil
}
