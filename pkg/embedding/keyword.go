package embedding

import (
	"regexp"
	"strings"
)

// SearchTerms is the result of ExtractSearchTerms (§4.5).
type SearchTerms struct {
	Keywords      []string
	ExactPhrases  []string
	UsedEmbedding bool
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "i": true, "you": true, "my": true,
	"me": true, "what": true, "do": true, "does": true, "did": true,
}

var quotedPhrasePattern = regexp.MustCompile(`"([^"]+)"`)

// ExtractSearchTerms splits query on whitespace, strips stopwords, and
// preserves double-quoted phrases as exact phrases (§4.5).
func ExtractSearchTerms(query string) SearchTerms {
	var phrases []string
	stripped := quotedPhrasePattern.ReplaceAllStringFunc(query, func(m string) string {
		sub := quotedPhrasePattern.FindStringSubmatch(m)
		if len(sub) == 2 && strings.TrimSpace(sub[1]) != "" {
			phrases = append(phrases, strings.ToLower(strings.TrimSpace(sub[1])))
		}
		return " "
	})

	var keywords []string
	for _, tok := range strings.Fields(stripped) {
		word := strings.ToLower(strings.Trim(tok, ".,!?;:()[]{}"))
		if word == "" || stopwords[word] {
			continue
		}
		keywords = append(keywords, word)
	}

	return SearchTerms{Keywords: keywords, ExactPhrases: phrases, UsedEmbedding: false}
}

// TextSimilarity scores how well text matches query using Jaccard overlap
// of extracted keywords plus a bonus weight for exact-phrase matches,
// providing a fallback ranking signal when embeddings are unavailable
// (§4.5).
func TextSimilarity(query, text string) float64 {
	terms := ExtractSearchTerms(query)
	lowerText := strings.ToLower(text)

	textWords := map[string]bool{}
	for _, w := range strings.Fields(lowerText) {
		textWords[strings.Trim(w, ".,!?;:()[]{}")] = true
	}

	var overlap int
	for _, kw := range terms.Keywords {
		if textWords[kw] {
			overlap++
		}
	}
	union := len(textWords)
	for kw := range textWords {
		_ = kw
	}
	// Jaccard over (keywords ∪ textWords), approximated via len(keywords)+len(textWords)-overlap
	denom := len(terms.Keywords) + union - overlap
	var jaccard float64
	if denom > 0 {
		jaccard = float64(overlap) / float64(denom)
	}

	var phraseBonus float64
	for _, phrase := range terms.ExactPhrases {
		if strings.Contains(lowerText, phrase) {
			phraseBonus += 0.3
		}
	}

	score := jaccard + phraseBonus
	if score > 1 {
		score = 1
	}
	return score
}
