package pdfops

import (
	"strconv"
	"strings"
)

// ParseRanges parses a split specification into page groups. Semicolons
// separate output groups; commas and hyphens define page sets within a
// group ("1-3;4,6" yields two outputs). The literal "all" produces one
// group per page. Out-of-range and malformed entries are silently dropped;
// an empty result means no valid pages were requested.
func ParseRanges(spec string, totalPages int) [][]int {
	spec = strings.TrimSpace(strings.ToLower(spec))
	if spec == "" || totalPages <= 0 {
		return nil
	}

	if spec == "all" {
		groups := make([][]int, 0, totalPages)
		for p := 1; p <= totalPages; p++ {
			groups = append(groups, []int{p})
		}
		return groups
	}

	var groups [][]int
	for _, groupSpec := range strings.Split(spec, ";") {
		group := parseGroup(groupSpec, totalPages)
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func parseGroup(spec string, totalPages int) []int {
	seen := make(map[int]bool)
	var pages []int
	add := func(p int) {
		if p >= 1 && p <= totalPages && !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start > end {
				continue
			}
			for p := start; p <= end; p++ {
				add(p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		add(p)
	}
	return pages
}

// ClampPages drops page numbers outside [1, totalPages] and deduplicates,
// preserving request order. Remove and Extract share this policy.
func ClampPages(pages []int, totalPages int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, p := range pages {
		if p >= 1 && p <= totalPages && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Complement returns all pages of [1, totalPages] not present in pages,
// in ascending order. Remove is implemented as Extract of the complement.
func Complement(pages []int, totalPages int) []int {
	drop := make(map[int]bool, len(pages))
	for _, p := range pages {
		drop[p] = true
	}
	var out []int
	for p := 1; p <= totalPages; p++ {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return out
}

// selectors renders page numbers as pdfcpu page-selection strings.
func selectors(pages []int) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, strconv.Itoa(p))
	}
	return out
}
