// Package table derives the visible page of a row set and render helpers
// for the product table.
package table

import (
	"sort"
	"strings"

	"bidmatch/internal"
)

// TotalPages returns ceil(count / pageSize), never less than 1 so an empty
// row set still renders one (empty) page.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := (count + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage clamps a 1-based page index into [1, totalPages]. Navigation
// past either end clamps rather than wraps.
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate returns the 1-based page slice of rows. The returned slice
// aliases rows; callers treat it as read-only.
func Paginate[T any](rows []T, pageSize, page int) []T {
	if pageSize <= 0 {
		return rows
	}
	page = ClampPage(page, TotalPages(len(rows), pageSize))
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return rows[:0]
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// CategoryPath renders a row's category tags as a breadcrumb, most specific
// last: tags sorted ascending by level, names joined with sep. An empty tag
// list renders a placeholder dash.
func CategoryPath(tags []internal.CategoryTag, sep string) string {
	if len(tags) == 0 {
		return "-"
	}
	sorted := append([]internal.CategoryTag(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	names := make([]string, 0, len(sorted))
	for _, tag := range sorted {
		names = append(names, tag.Name)
	}
	return strings.Join(names, sep)
}
