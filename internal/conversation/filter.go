package conversation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rivofx/newpulse/internal/apperr"
)

// MaxContentRunes bounds the length of a single message.
const MaxContentRunes = 2000

// MaxTokenLength bounds client correlation tokens.
const MaxTokenLength = 64

var profanity = []string{"damn", "hell", "crap"}

var profanityPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(profanity))
	for _, w := range profanity {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return out
}()

// FilterProfanity masks listed words with asterisks. Only whole words match,
// in any case.
func FilterProfanity(text string) string {
	for i, re := range profanityPatterns {
		text = re.ReplaceAllString(text, strings.Repeat("*", len(profanity[i])))
	}
	return text
}

// CleanContent trims, validates and filters message content.
func CleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Invalid("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", apperr.Invalid("message is longer than %d characters", MaxContentRunes)
	}
	return FilterProfanity(content), nil
}

func cleanToken(token string) (*string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if len(token) > MaxTokenLength {
		return nil, apperr.Invalid("client token is longer than %d bytes", MaxTokenLength)
	}
	return &token, nil
}
