package grid

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum rank a cell needs to be returned by Search.
const DefaultThreshold = 50

// searchTerm matches "category: text" or a bare word.
var searchTerm = regexp.MustCompile(`(?i)(?:([a-z_][a-z0-9_]*):\s*)?(\S+)`)

// Term is a search word restricted to one metadata key.
type Term struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Query is a parsed search string.
type Query struct {
	// General words match cell headers and device names. When there is
	// more than one, the words joined by spaces are searched for as well.
	General []string `json:"general,omitempty"`
	// Categories match the metadata value of the named key.
	Categories []Term `json:"categories,omitempty"`
}

// ParseQuery splits text into space-separated words. A word written as
// "key: value" is restricted to the metadata key.
func ParseQuery(text string) Query {
	var q Query
	for _, m := range searchTerm.FindAllStringSubmatch(strings.TrimSpace(text), -1) {
		if m[1] != "" {
			q.Categories = append(q.Categories, Term{Category: m[1], Text: m[2]})
			continue
		}
		q.General = append(q.General, m[2])
	}
	if len(q.General) > 1 {
		q.General = append(q.General, strings.Join(q.General, " "))
	}
	return q
}

// IsEmpty reports whether q has nothing to search for.
func (q Query) IsEmpty() bool {
	return len(q.General) == 0 && len(q.Categories) == 0
}

// Ratio scores the similarity of a and b from 0 to 100, ignoring case.
//
// Below threshold, a string that starts or ends with the other (longer than
// two characters) scores threshold+1 and one that merely contains it scores
// threshold. The same checks are repeated with underscores removed, so
// "VGC1" is found in "tmo_vgc_1".
func Ratio(a, b string, threshold int) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	ratio := similarity(a, b)
	if ratio >= threshold {
		return ratio
	}

	for _, strip := range []bool{false, true} {
		long, short := a, b
		if strip {
			long, short = strings.ReplaceAll(long, "_", ""), strings.ReplaceAll(short, "_", "")
		}
		if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
			long, short = short, long
		}
		if n := utf8.RuneCountInString(short); n <= 2 || n == utf8.RuneCountInString(long) {
			continue
		}
		if strings.HasPrefix(long, short) || strings.HasSuffix(long, short) {
			return threshold + 1
		}
		if strings.Contains(long, short) {
			return threshold
		}
	}
	return ratio
}

func similarity(a, b string) int {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (100*(longest-dist) + longest/2) / longest
}

// Match is a cell found by Search.
type Match struct {
	Cell Cell `json:"cell"`
	Rank int  `json:"rank"`
	// Reason is the header, device name or metadata value that matched.
	Reason string `json:"reason"`
}

// Search ranks the non-empty cells of g against q. A cell is scored by its
// best matching header or device name (general words) or device metadata
// value (category words), and is returned when that score exceeds
// threshold. Results are ordered by rank, best first, then by grid position.
func (g *Grid) Search(q Query, threshold int) []Match {
	var matches []Match
	if g == nil || q.IsEmpty() {
		return matches
	}

	g.Each(func(c Cell) {
		if len(c.Entities) == 0 {
			return
		}
		best := Match{Cell: c}
		consider := func(candidate, text string) {
			if r := Ratio(candidate, text, threshold); r > best.Rank {
				best.Rank, best.Reason = r, candidate
			}
		}

		for _, text := range q.General {
			consider(c.Row, text)
			consider(c.Column, text)
			for _, e := range c.Entities {
				consider(e.Name, text)
			}
		}
		for _, term := range q.Categories {
			for _, e := range c.Entities {
				if v, ok := e.Value(term.Category); ok {
					consider(v, term.Text)
				}
			}
		}

		if best.Rank > threshold {
			matches = append(matches, best)
		}
	})

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Rank > matches[j].Rank
	})
	return matches
}
