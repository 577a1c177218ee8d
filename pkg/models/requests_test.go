package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskRequestValidate(t *testing.T) {
	t.Run("trims surrounding whitespace", func(t *testing.T) {
		req := AskRequest{Question: "  what is this about?  "}
		require.NoError(t, req.Validate())
		assert.Equal(t, "what is this about?", req.Question)
	})

	t.Run("rejects empty question", func(t *testing.T) {
		req := AskRequest{Question: ""}
		assert.ErrorIs(t, req.Validate(), ErrQuestionEmpty)
	})

	t.Run("rejects blank question", func(t *testing.T) {
		req := AskRequest{Question: "   \n\t "}
		assert.ErrorIs(t, req.Validate(), ErrQuestionEmpty)
	})

	t.Run("rejects question over the limit", func(t *testing.T) {
		req := AskRequest{Question: strings.Repeat("x", maxQuestionLength+1)}
		assert.ErrorIs(t, req.Validate(), ErrQuestionTooLong)
	})

	t.Run("accepts question at the limit", func(t *testing.T) {
		req := AskRequest{Question: strings.Repeat("x", maxQuestionLength)}
		assert.NoError(t, req.Validate())
	})

	t.Run("counts characters, not bytes", func(t *testing.T) {
		// Multibyte runes: well under the limit in characters even
		// though the byte length is far over it.
		req := AskRequest{Question: strings.Repeat("é", 1500)}
		assert.NoError(t, req.Validate())

		req = AskRequest{Question: strings.Repeat("é", maxQuestionLength)}
		assert.NoError(t, req.Validate())

		req = AskRequest{Question: strings.Repeat("é", maxQuestionLength+1)}
		assert.ErrorIs(t, req.Validate(), ErrQuestionTooLong)
	})
}
