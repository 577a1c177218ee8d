package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const maxQuestionLength = 2000

var (
	ErrQuestionEmpty   = errors.New("question cannot be empty")
	ErrQuestionTooLong = errors.New("question exceeds maximum length")
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and enforces the length bounds. The trimmed
// question is written back so handlers operate on the cleaned value.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return ErrQuestionEmpty
	}
	if utf8.RuneCountInString(r.Question) > maxQuestionLength {
		return ErrQuestionTooLong
	}
	return nil
}

// SummarizeRequest is the (empty) body of POST /summarize.
type SummarizeRequest struct{}

type UploadResponse struct {
	DocID string `json:"doc_id"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	DocumentReady bool   `json:"document_ready"`
	Chunks        int    `json:"chunks"`
}
