package voices

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// ResolverOption is a functional option for configuring a [Resolver].
type ResolverOption func(*Resolver)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) ResolverOption {
	return func(r *Resolver) {
		r.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the resolver falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) ResolverOption {
	return func(r *Resolver) {
		r.fuzzyThreshold = threshold
	}
}

// Resolver matches spoken or typed participant names against registered
// display names using Double Metaphone phonetic codes with Jaro-Winkler
// ranking. Names heard through speech recognition rarely arrive spelled the
// way they were registered; phonetic candidate filtering first, similarity
// ranking second handles that drift.
//
// Read-only after construction; safe for concurrent use.
type Resolver struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewResolver returns a Resolver configured with the supplied options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Match finds the name from names most phonetically similar to input.
// When matched is false, the input found no confident candidate.
func (r *Resolver) Match(input string, names []string) (name string, confidence float64, matched bool) {
	if len(names) == 0 || strings.TrimSpace(input) == "" {
		return "", 0, false
	}

	inputLower := strings.ToLower(strings.TrimSpace(input))
	inputTokens := strings.Fields(inputLower)
	inputCodes := codesForTokens(inputTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, n := range names {
		nameLower := strings.ToLower(strings.TrimSpace(n))
		if nameLower == "" {
			continue
		}
		nameTokens := strings.Fields(nameLower)

		phoneticMatch := codesOverlap(inputCodes, codesForTokens(nameTokens))
		score := bestJWScore(inputTokens, nameTokens, inputLower, nameLower)

		if phoneticMatch {
			if score >= r.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{name: n, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= r.fuzzyThreshold && score > best.score {
			best = candidate{name: n, score: score, phonetic: false}
		}
	}

	if best.name == "" {
		return "", 0, false
	}
	return best.name, best.score, true
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between input and
// name across full-string, space-stripped, and best pairwise token
// comparisons.
func bestJWScore(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
