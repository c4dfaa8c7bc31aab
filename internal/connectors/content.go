package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashContent fingerprints a raw body for change detection. Unchanged
// content across runs produces the same hash and is skipped on
// re-ingestion.
func HashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// HeadingQuestions derives synthetic recall questions from a document's
// title and markdown headings. Used when no question-generation service
// is configured.
func HeadingQuestions(title, text string, max int) []string {
	if max <= 0 {
		return nil
	}

	var questions []string
	seen := make(map[string]bool)

	add := func(topic string) {
		topic = strings.TrimSpace(topic)
		if topic == "" || seen[topic] {
			return
		}
		seen[topic] = true
		questions = append(questions, "What does the documentation say about "+topic+"?")
	}

	add(title)
	for _, line := range strings.Split(text, "\n") {
		if len(questions) >= max {
			break
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		add(strings.TrimLeft(trimmed, "# "))
	}

	if len(questions) > max {
		questions = questions[:max]
	}
	return questions
}
