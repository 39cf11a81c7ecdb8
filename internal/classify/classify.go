package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

const (
	minTitleRunes   = 2
	navSlackRunes   = 4
	articleMinRunes = 12
)

var yearPattern = regexp.MustCompile(`20\d{2}`)

var defaultRules = DefaultRules()

// CategoryOf scores title and url against the built-in keyword lists.
func CategoryOf(title, url string) Category {
	return defaultRules.Category(title, url)
}

func IsNavigational(title string) bool {
	return defaultRules.IsNavigational(title)
}

func IsArticleLike(title string) bool {
	return defaultRules.IsArticleLike(title)
}

// Category assigns a job type. Teaching needs a strict majority; a tie with
// at least one administrative hit is administrative.
func (r Rules) Category(title, url string) Category {
	text := fold(title + " " + url)
	teaching := countHits(text, r.Teaching)
	admin := countHits(text, r.Administrative)

	switch {
	case teaching > admin:
		return Teaching
	case admin > 0:
		return Administrative
	default:
		return Other
	}
}

// IsNavigational reports whether title reads like a menu or category label
// rather than a specific posting.
func (r Rules) IsNavigational(title string) bool {
	t := strings.TrimSpace(title)
	n := utf8.RuneCountInString(t)
	if n <= minTitleRunes {
		return true
	}
	for _, nav := range r.Navigation {
		if t == nav {
			return true
		}
	}
	for _, nav := range r.Navigation {
		if nav != "" && strings.Contains(t, nav) && n <= utf8.RuneCountInString(nav)+navSlackRunes {
			return true
		}
	}
	return false
}

// IsArticleLike reports whether title looks like a concrete notice or
// regulation.
func (r Rules) IsArticleLike(title string) bool {
	t := strings.TrimSpace(title)
	if r.IsNavigational(t) {
		return false
	}
	for _, k := range r.ArticleIndicators {
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	if yearPattern.MatchString(width.Narrow.String(t)) {
		return true
	}
	return utf8.RuneCountInString(t) >= articleMinRunes
}

// HasRecruitmentTerm reports whether s mentions any general, teaching or
// administrative keyword.
func (r Rules) HasRecruitmentTerm(s string) bool {
	return countHits(fold(s), r.RecruitmentTerms()) > 0
}

func countHits(folded string, keywords []string) int {
	if folded == "" {
		return 0
	}
	hits := 0
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(folded, fold(k)) {
			hits++
		}
	}
	return hits
}

// fold lower-cases Latin text; CJK passes through unchanged. Casers keep
// state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
