package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivofx/newpulse/internal/apperr"
)

func TestFilterProfanity(t *testing.T) {
	tests := map[string]string{
		"well damn":           "well ****",
		"HELL no":             "**** no",
		"Crap, crap!":         "****, ****!",
		"hello shellfish":     "hello shellfish",
		"damnation is a word": "damnation is a word",
		"nothing to see here": "nothing to see here",
		"damn hell crap damn": "**** **** **** ****",
	}
	for in, want := range tests {
		assert.Equal(t, want, FilterProfanity(in), in)
	}
}

func TestCleanContent(t *testing.T) {
	got, err := CleanContent("  oh hell  ")
	require.NoError(t, err)
	assert.Equal(t, "oh ****", got)

	_, err = CleanContent("   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = CleanContent(strings.Repeat("é", MaxContentRunes))
	assert.NoError(t, err)

	_, err = CleanContent(strings.Repeat("é", MaxContentRunes+1))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCleanToken(t *testing.T) {
	tok, err := cleanToken("")
	require.NoError(t, err)
	assert.Nil(t, tok)

	tok, err = cleanToken(" abc ")
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "abc", *tok)

	_, err = cleanToken(strings.Repeat("x", MaxTokenLength+1))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
