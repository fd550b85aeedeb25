package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/clearinghouse-cli/internal/core/domain"
	"github.com/custodia-labs/clearinghouse-cli/internal/core/ports/driven"
)

// DefaultMaxSentences bounds how many leading sentences a summary keeps.
const DefaultMaxSentences = 4

var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

// HeuristicSummarizer produces lightweight extractive summaries: a metadata
// header followed by the document's leading sentences as bullets. It never
// fails; documents without text get a fixed fallback bullet.
type HeuristicSummarizer struct {
	maxSentences int
}

var _ driven.Summarizer = (*HeuristicSummarizer)(nil)

// NewHeuristicSummarizer creates a summarizer keeping at most maxSentences
// sentences. Non-positive values fall back to DefaultMaxSentences.
func NewHeuristicSummarizer(maxSentences int) *HeuristicSummarizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &HeuristicSummarizer{maxSentences: maxSentences}
}

// Summarize builds a plain-text summary for the document.
func (s *HeuristicSummarizer) Summarize(doc domain.Document) string {
	metaBits := []string{"Document"}
	if doc.Type != "" {
		metaBits[0] = doc.Type
	}
	if doc.Court != "" {
		metaBits = append(metaBits, doc.Court)
	}
	if subject, ok := doc.Metadata["subject"]; ok && subject != nil {
		metaBits = append(metaBits, fmt.Sprint(subject))
	}
	header := fmt.Sprintf("Summary for %s (%s)", doc.Title, strings.Join(metaBits, ", "))

	sentences := firstSentences(doc.Text, s.maxSentences)
	if len(sentences) == 0 {
		sentences = []string{"No text available for summarization yet."}
	}

	var b strings.Builder
	b.WriteString(header)
	for _, sentence := range sentences {
		b.WriteString("\n- ")
		b.WriteString(sentence)
	}
	return b.String()
}

// firstSentences returns up to limit sentences from the leading paragraphs.
// The split is naive on purpose: sentence boundaries in legal prose are
// messy, and this summary only needs to orient a reader.
func firstSentences(text string, limit int) []string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}
	var out []string
	for _, paragraph := range strings.Split(cleaned, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			out = append(out, sentence)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with its sentence.
func splitSentences(paragraph string) []string {
	bounds := sentenceSplit.FindAllStringIndex(paragraph, -1)
	if len(bounds) == 0 {
		return []string{paragraph}
	}
	var out []string
	start := 0
	for _, b := range bounds {
		// b[0]+1 keeps the punctuation character in the sentence.
		out = append(out, paragraph[start:b[0]+1])
		start = b[1]
	}
	if start < len(paragraph) {
		out = append(out, paragraph[start:])
	}
	return out
}
