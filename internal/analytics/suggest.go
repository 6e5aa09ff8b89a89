package analytics

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"fintrack/internal/core"
)

const (
	// ConfidenceThreshold is the confidence above which a suggestion is
	// good enough to pre-fill a new transaction.
	ConfidenceThreshold = 0.3

	minTokenLen   = 3
	minSimilarity = 0.2
	maxBoostCount = 10
)

// Suggestion proposes classification details for a new description, drawn
// from past transactions with similar wording.
type Suggestion struct {
	Type          core.TransactionType `json:"type"`
	Category      string               `json:"category"`
	PaymentMethod core.PaymentMethod   `json:"payment_method,omitempty"`
	FixedExpense  bool                 `json:"fixed_expense"`
	Score         float64              `json:"score"`
	Matches       int                  `json:"matches"`
	Confidence    float64              `json:"confidence"`
}

// Tokenize lowercases text, turns punctuation into spaces and returns the
// distinct words of at least three characters in order of appearance.
func Tokenize(text string) []string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) < minTokenLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	toks := Tokenize(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// RankCategories scores every (type, category) group that has at least one
// past description with Jaccard similarity >= 0.2 to description. The score
// is the mean similarity boosted by 10% per match, capped at ten matches.
// Results are ordered by score, highest first; ties keep ledger order.
func RankCategories(ledger core.Ledger, description string) []Suggestion {
	query := tokenSet(description)
	if len(query) == 0 {
		return nil
	}

	type group struct {
		typ        core.TransactionType
		category   string
		scoreSum   float64
		matches    int
		fixed      int
		methods    map[core.PaymentMethod]int
		methodSeen []core.PaymentMethod
	}
	type key struct {
		typ      core.TransactionType
		category string
	}
	index := make(map[key]*group)
	var order []*group

	for _, t := range ledger {
		if strings.TrimSpace(t.Description) == "" {
			continue
		}
		score := jaccard(query, tokenSet(t.Description))
		if score < minSimilarity {
			continue
		}
		k := key{t.Type, t.Category}
		g, ok := index[k]
		if !ok {
			g = &group{typ: t.Type, category: t.Category, methods: map[core.PaymentMethod]int{}}
			index[k] = g
			order = append(order, g)
		}
		g.scoreSum += score
		g.matches++
		if t.FixedExpense {
			g.fixed++
		}
		if t.PaymentMethod != "" {
			if g.methods[t.PaymentMethod] == 0 {
				g.methodSeen = append(g.methodSeen, t.PaymentMethod)
			}
			g.methods[t.PaymentMethod]++
		}
	}

	out := make([]Suggestion, 0, len(order))
	for _, g := range order {
		var method core.PaymentMethod
		best := 0
		for _, m := range g.methodSeen {
			if g.methods[m] > best {
				best, method = g.methods[m], m
			}
		}
		boost := g.matches
		if boost > maxBoostCount {
			boost = maxBoostCount
		}
		score := g.scoreSum / float64(g.matches) * (1 + 0.1*float64(boost))
		confidence := score
		if confidence > 1 {
			confidence = 1
		}
		out = append(out, Suggestion{
			Type:          g.typ,
			Category:      g.category,
			PaymentMethod: method,
			FixedExpense:  float64(g.fixed)/float64(g.matches) > 0.5,
			Score:         score,
			Matches:       g.matches,
			Confidence:    confidence,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SuggestCategory returns the best ranked suggestion, if any past
// transaction is similar enough.
func SuggestCategory(ledger core.Ledger, description string) (Suggestion, bool) {
	ranked := RankCategories(ledger, description)
	if len(ranked) == 0 {
		return Suggestion{}, false
	}
	return ranked[0], true
}
