package quality

import (
	"regexp"
	"strings"
)

// Metric score fallbacks and thresholds. A failed metric reports the
// conservative fallback rather than zeroing the whole evaluation.
const (
	FallbackScore   = 0.75
	DefaultMinScore = 0.70
)

// minPrecisionOverlap is the number of shared content tokens a chunk needs
// with the response to count as relevant.
const minPrecisionOverlap = 3

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are excluded from all overlap computations.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "its": true, "my": true, "of": true, "on": true,
	"or": true, "so": true, "that": true, "the": true, "these": true,
	"this": true, "to": true, "was": true, "what": true, "when": true,
	"which": true, "will": true, "with": true, "you": true, "your": true,
}

// Tokenize lowercases text and returns its content tokens with stopwords
// removed.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if !stopwords[t] {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokenize(text) {
		set[t] = true
	}
	return set
}

// Faithfulness measures factual consistency: the fraction of the response's
// content tokens that appear somewhere in the retrieved contexts. A response
// inventing terminology absent from its sources scores low.
func Faithfulness(response string, contexts []string) float64 {
	responseTokens := Tokenize(response)
	if len(responseTokens) == 0 {
		return 0
	}

	contextSet := tokenSet(strings.Join(contexts, " "))
	if len(contextSet) == 0 {
		return 0
	}

	grounded := 0
	for _, t := range responseTokens {
		if contextSet[t] {
			grounded++
		}
	}
	return float64(grounded) / float64(len(responseTokens))
}

// ContextPrecision measures retrieval relevance: the fraction of retrieved
// chunks that contributed to the response, where contributing means sharing
// at least minPrecisionOverlap content tokens with it.
func ContextPrecision(response string, contexts []string) float64 {
	if len(contexts) == 0 {
		return 0
	}

	responseSet := tokenSet(response)
	if len(responseSet) == 0 {
		return 0
	}

	relevant := 0
	for _, context := range contexts {
		overlap := 0
		for t := range tokenSet(context) {
			if responseSet[t] {
				overlap++
			}
		}
		if overlap >= minPrecisionOverlap {
			relevant++
		}
	}
	return float64(relevant) / float64(len(contexts))
}

// ContextRecall measures coverage: the fraction of the query's content
// tokens addressed by the response.
func ContextRecall(query, response string) float64 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	responseSet := tokenSet(response)
	covered := 0
	for _, t := range queryTokens {
		if responseSet[t] {
			covered++
		}
	}
	return float64(covered) / float64(len(queryTokens))
}
