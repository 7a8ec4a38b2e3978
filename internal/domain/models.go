package domain

import "time"

// QuestionType selects the render/verify behavior for a question.
type QuestionType string

const (
	// TypeRadio is a single-choice question with exactly one correct option.
	TypeRadio QuestionType = "radio"
	// TypeCheckbox is a multi-choice question; may allow partial credit.
	TypeCheckbox QuestionType = "checkbox"
	// TypeText is a free-text prompt; the entered value is matched against
	// the option values.
	TypeText QuestionType = "text"
)

// RewardStatus restricts when a configured reward is issued.
type RewardStatus int

const (
	RewardOnFail RewardStatus = 1
	RewardOnPass RewardStatus = 2
	RewardAlways RewardStatus = 3
)

// Quiz is the administrator-owned definition that parameterizes sessions,
// grading and reports.
type Quiz struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	IntroText   string   `json:"introText"`
	IntroFields []string `json:"introFields"`
	// Levels are percentage cut points in the fixed order
	// [passed, warning, failed]; only the first three are used.
	Levels       []float64 `json:"levels"`
	NumQuestions int       `json:"numQuestions"` // 0 presents all questions
	OneTime      bool      `json:"oneTime"`
	Enabled      bool      `json:"enabled"`
	PassMsg      string    `json:"passMsg"`
	FailMsg      string    `json:"failMsg"`

	// Group IDs consulted by the access checker.
	FillGroupID    int `json:"fillGroupId"`
	ResultsGroupID int `json:"resultsGroupId"`
	AdminGroupID   int `json:"adminGroupId"`

	RewardID     int          `json:"rewardId"`
	RewardStatus RewardStatus `json:"rewardStatus"`
}

// Option is a possible answer for a choice-type question.
type Option struct {
	ID      string `json:"id"`
	Value   string `json:"value"`
	Correct bool   `json:"correct"`
}

// Question belongs to a quiz and is never mutated during a submission.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	HelpText      string       `json:"helpText"`
	AnswerMsg     string       `json:"answerMsg"`
	PartialCredit bool         `json:"partialCredit"`
	Randomize     bool         `json:"randomize"`
	Enabled       bool         `json:"enabled"`
	Options       []Option     `json:"options"`
}

// Answer is one recorded response inside a submission. Values holds the
// selected option IDs for choice questions or the raw text for text ones.
type Answer struct {
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

// Submission tracks one user's attempt at a quiz. Asked is fixed when the
// attempt begins; Answers preserves first-submitted order.
type Submission struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quizId"`
	UserID      string            `json:"userId"`
	StartedAt   time.Time         `json:"startedAt"`
	IntroFields map[string]string `json:"introFields"`
	IntroDone   bool              `json:"introDone"`
	Asked       []string          `json:"asked"`
	Answers     []Answer          `json:"answers"`
}

// SetAnswer upserts a response. Overwriting an already-answered question
// keeps its original position so answer order stays stable.
func (s *Submission) SetAnswer(questionID string, values []string) {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			s.Answers[i].Values = values
			return
		}
	}
	s.Answers = append(s.Answers, Answer{QuestionID: questionID, Values: values})
}

// AnswerFor returns the recorded values for a question, if any.
func (s *Submission) AnswerFor(questionID string) ([]string, bool) {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return s.Answers[i].Values, true
		}
	}
	return nil, false
}

// WasAsked reports whether the question is part of this attempt.
func (s *Submission) WasAsked(questionID string) bool {
	for _, id := range s.Asked {
		if id == questionID {
			return true
		}
	}
	return false
}

// NextUnansweredQuestionID returns the first asked question without a
// recorded answer, or "" when the attempt is complete.
func (s *Submission) NextUnansweredQuestionID() string {
	for _, id := range s.Asked {
		if _, ok := s.AnswerFor(id); !ok {
			return id
		}
	}
	return ""
}

// AllAnswered reports whether every asked question has a recorded answer.
func (s *Submission) AllAnswered() bool {
	return s.NextUnansweredQuestionID() == "" && len(s.Asked) > 0
}
