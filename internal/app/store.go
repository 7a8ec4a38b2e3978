package app

import (
	"context"

	"github.com/leegarner/quizzer/internal/domain"
)

// Store abstracts persistence for quiz definitions, questions and
// submissions (in-memory, Postgres, etc).
type Store interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	PutQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	QuizIDExists(ctx context.Context, quizID string) (bool, error)

	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
	PutQuestion(ctx context.Context, question domain.Question) error
	DeleteQuestionsByQuiz(ctx context.Context, quizID string) error

	// CreateSubmission inserts a new attempt. When oneTime is set the
	// existence check and the insert happen as one atomic operation and a
	// second attempt for the same (quiz, user) fails with
	// domain.ErrDuplicateSubmission.
	CreateSubmission(ctx context.Context, sub domain.Submission, oneTime bool) error
	PutSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error)
	SubmissionsByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error)
	SubmissionsByUser(ctx context.Context, quizID, userID string) ([]domain.Submission, error)
	CountSubmissions(ctx context.Context, quizID string) (int, error)
	DeleteSubmissionsByQuiz(ctx context.Context, quizID string) error

	// MigrateQuizID repoints questions and submissions at a renamed quiz so
	// a definition rename never orphans them.
	MigrateQuizID(ctx context.Context, oldID, newID string) error
}

// QuizSource is the read path for quiz definitions; caches and stores both
// satisfy it.
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuizCache is a QuizSource with explicit invalidation, called whenever a
// definition is saved, duplicated, toggled or deleted.
type QuizCache interface {
	QuizSource
	Invalidate(ctx context.Context, quizID string) error
}

// AccessLevel selects which of a quiz's group IDs guards an operation.
type AccessLevel int

const (
	// AccessView guards result summaries and exports.
	AccessView AccessLevel = iota
	// AccessFill guards taking the quiz.
	AccessFill
	// AccessAdmin guards definition changes.
	AccessAdmin
)

// AccessChecker answers group-membership questions. The actual membership
// model (CMS groups, LDAP, ...) lives outside this service.
type AccessChecker interface {
	InGroup(ctx context.Context, userID string, groupID int) (bool, error)
}

// RewardIssuer hands out whatever a passed (or failed) quiz earns. The
// reward itself is opaque to this service.
type RewardIssuer interface {
	Issue(ctx context.Context, sub domain.Submission, grade domain.Grade) error
}

// CompletionListener is notified after a submission's final answer is
// recorded, with the computed grade.
type CompletionListener interface {
	SubmissionCompleted(sub domain.Submission, grade domain.Grade)
}

// accessGroup picks the quiz group ID guarding the given level.
func accessGroup(quiz domain.Quiz, level AccessLevel) int {
	switch level {
	case AccessView:
		return quiz.ResultsGroupID
	case AccessFill:
		return quiz.FillGroupID
	default:
		return quiz.AdminGroupID
	}
}

func checkAccess(ctx context.Context, access AccessChecker, quiz domain.Quiz, level AccessLevel, userID string) error {
	ok, err := access.InGroup(ctx, userID, accessGroup(quiz, level))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoAccess
	}
	return nil
}
