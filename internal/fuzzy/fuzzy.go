// Package fuzzy implements the ranked subsequence matcher used by search.
package fuzzy

import (
	"sort"
	"strings"
)

// Score rates how well needle matches haystack as a case-insensitive
// subsequence. It returns 0 when needle is empty or any of its runes cannot
// be found in order.
//
// Matching is greedy: each needle rune takes the first occurrence strictly
// after the previous match, with no backtracking, so Score is not an optimal
// alignment. A match right after the previous one earns 2 points (a first
// rune at position 0 counts), any other match 1, and a match preceded by a
// space earns 1 more.
func Score(needle, haystack string) int {
	pattern := []rune(strings.ToLower(needle))
	text := []rune(strings.ToLower(haystack))

	score := 0
	last := -1
	for _, c := range pattern {
		idx := indexFrom(text, c, last+1)
		if idx < 0 {
			return 0
		}
		if idx == last+1 {
			score += 2
		} else {
			score++
		}
		if idx > 0 && text[idx-1] == ' ' {
			score++
		}
		last = idx
	}
	return score
}

func indexFrom(text []rune, c rune, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] == c {
			return i
		}
	}
	return -1
}

// Match pairs an item with its score.
type Match[T any] struct {
	Item  T
	Score int
}

// Rank scores every item's key against needle, drops non-matches and orders
// the rest by descending score. Ties keep their input order.
func Rank[T any](needle string, items []T, key func(T) string) []Match[T] {
	out := make([]Match[T], 0, len(items))
	for _, it := range items {
		if s := Score(needle, key(it)); s > 0 {
			out = append(out, Match[T]{Item: it, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
