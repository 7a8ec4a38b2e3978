package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID references no stored question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound indicates a submission ID references no stored attempt.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUnknownQuestion is returned when an answer targets a question that
	// was not selected for the attempt.
	ErrUnknownQuestion = errors.New("question not part of this attempt")
	// ErrDuplicateSubmission is returned when a one-time quiz already has a
	// submission for the user.
	ErrDuplicateSubmission = errors.New("quiz already taken")
	// ErrNameRequired is returned when saving a quiz without a name.
	ErrNameRequired = errors.New("quiz name is required")
	// ErrNoQuestions is returned when starting a quiz that has no enabled
	// questions to ask.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrNoAccess is returned when the access checker denies an operation.
	ErrNoAccess = errors.New("access denied")
)

// ValidationError describes one invalid answer in a batch submission.
type ValidationError struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("question %s: %s", e.QuestionID, e.Reason)
}

// ValidationErrors collects per-question problems so a batch submission can
// report all of them at once instead of failing on the first.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}
