package app

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/leegarner/quizzer/internal/domain"
)

// SessionService manages the lifecycle of one quiz attempt: creating the
// submission, fixing the question selection, collecting intro fields and
// recording answers until the attempt completes.
type SessionService struct {
	store    Store
	quizzes  QuizSource
	access   AccessChecker
	rewards  RewardIssuer
	listener CompletionListener
	now      func() time.Time
	newID    func() string
	rnd      *rand.Rand
}

func NewSessionService(store Store, quizzes QuizSource, access AccessChecker, rewards RewardIssuer) *SessionService {
	return &SessionService{
		store:   store,
		quizzes: quizzes,
		access:  access,
		rewards: rewards,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetCompletionListener registers a listener notified after the final
// answer of an attempt is recorded. Optional.
func (s *SessionService) SetCompletionListener(l CompletionListener) {
	s.listener = l
}

// Create starts a new attempt. For one-time quizzes a second attempt for
// the same user fails with domain.ErrDuplicateSubmission; the existence
// check and insert are atomic in the store.
func (s *SessionService) Create(ctx context.Context, quizID, userID string) (domain.Submission, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessFill, userID); err != nil {
		return domain.Submission{}, err
	}

	asked, err := s.selectQuestions(ctx, quiz)
	if err != nil {
		return domain.Submission{}, err
	}
	// An attempt with nothing to ask could never complete.
	if len(asked) == 0 {
		return domain.Submission{}, domain.ErrNoQuestions
	}
	sub := domain.Submission{
		ID:          s.newID(),
		QuizID:      quizID,
		UserID:      userID,
		StartedAt:   s.now(),
		IntroFields: map[string]string{},
		// Intro is only pending when the quiz actually has one.
		IntroDone: quiz.IntroText == "" && len(quiz.IntroFields) == 0,
		Asked:     asked,
	}
	if err := s.store.CreateSubmission(ctx, sub, quiz.OneTime); err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// GetOrCreateCurrent returns the user's in-progress attempt for the quiz,
// or creates one. Idempotent: calling it repeatedly never produces a second
// open attempt.
func (s *SessionService) GetOrCreateCurrent(ctx context.Context, quizID, userID string) (domain.Submission, error) {
	subs, err := s.store.SubmissionsByUser(ctx, quizID, userID)
	if err != nil {
		return domain.Submission{}, err
	}
	for _, sub := range subs {
		if !sub.AllAnswered() {
			return sub, nil
		}
	}
	return s.Create(ctx, quizID, userID)
}

// selectQuestions fixes the ordered question set for a new attempt. With
// NumQuestions == 0 every enabled question is used in stored order;
// otherwise a random subset of that size is drawn once and persisted, so
// the selection never changes between renders.
func (s *SessionService) selectQuestions(ctx context.Context, quiz domain.Quiz) ([]string, error) {
	questions, err := s.quizzes.QuestionsByQuiz(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.Enabled {
			ids = append(ids, q.ID)
		}
	}
	if quiz.NumQuestions <= 0 || quiz.NumQuestions >= len(ids) {
		return ids, nil
	}
	s.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids[:quiz.NumQuestions], nil
}

// fillAccess loads an attempt and verifies the acting user owns it and is
// still allowed to fill the quiz. Every mutation of an attempt goes through
// this.
func (s *SessionService) fillAccess(ctx context.Context, userID, submissionID string) (domain.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if sub.UserID != userID {
		return domain.Submission{}, domain.ErrNoAccess
	}
	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessFill, userID); err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// RecordIntroFields stores the intro prompt values and marks the intro as
// done. Safe to call when nothing is pending.
func (s *SessionService) RecordIntroFields(ctx context.Context, userID, submissionID string, values map[string]string) error {
	sub, err := s.fillAccess(ctx, userID, submissionID)
	if err != nil {
		return err
	}
	if sub.IntroDone {
		return nil
	}
	if sub.IntroFields == nil {
		sub.IntroFields = map[string]string{}
	}
	for k, v := range values {
		sub.IntroFields[k] = v
	}
	sub.IntroDone = true
	return s.store.PutSubmission(ctx, sub)
}

// NextQuestion resolves the first unanswered question of the attempt. The
// second return is false when the attempt is complete. Option order is
// shuffled at render time for questions that ask for it; the stored
// definition keeps its order.
func (s *SessionService) NextQuestion(ctx context.Context, submissionID string) (domain.Question, bool, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Question{}, false, err
	}
	qid := sub.NextUnansweredQuestionID()
	if qid == "" {
		return domain.Question{}, false, nil
	}
	question, err := s.store.GetQuestion(ctx, qid)
	if err != nil {
		return domain.Question{}, false, err
	}
	if question.Randomize {
		opts := append([]domain.Option(nil), question.Options...)
		s.rnd.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
		question.Options = opts
	}
	return question, true, nil
}

// RecordAnswer validates and upserts one answer. Answering a question that
// was not selected for the attempt fails with domain.ErrUnknownQuestion.
// Completing the last question finishes the attempt.
func (s *SessionService) RecordAnswer(ctx context.Context, userID, submissionID, questionID string, values []string) error {
	sub, err := s.fillAccess(ctx, userID, submissionID)
	if err != nil {
		return err
	}
	if !sub.WasAsked(questionID) {
		return domain.ErrUnknownQuestion
	}
	question, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := question.Validate(values); err != nil {
		return err
	}
	sub.SetAnswer(questionID, values)
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return err
	}
	if sub.AllAnswered() {
		s.finish(ctx, sub)
	}
	return nil
}

// SubmitAnswers records a batch of answers, validating every question and
// reporting all problems together instead of stopping at the first.
func (s *SessionService) SubmitAnswers(ctx context.Context, userID, submissionID string, answers map[string][]string) error {
	sub, err := s.fillAccess(ctx, userID, submissionID)
	if err != nil {
		return err
	}
	for qid := range answers {
		if !sub.WasAsked(qid) {
			return domain.ErrUnknownQuestion
		}
	}
	var verrs domain.ValidationErrors
	for _, qid := range sub.Asked {
		values, ok := answers[qid]
		if !ok {
			continue
		}
		question, err := s.store.GetQuestion(ctx, qid)
		if err != nil {
			return err
		}
		if err := question.Validate(values); err != nil {
			var ve domain.ValidationError
			if errors.As(err, &ve) {
				verrs = append(verrs, ve)
				continue
			}
			return err
		}
		sub.SetAnswer(qid, values)
	}
	if len(verrs) > 0 {
		return verrs
	}
	if err := s.store.PutSubmission(ctx, sub); err != nil {
		return err
	}
	if sub.AllAnswered() {
		s.finish(ctx, sub)
	}
	return nil
}

// Submission loads an attempt by ID.
func (s *SessionService) Submission(ctx context.Context, submissionID string) (domain.Submission, error) {
	return s.store.GetSubmission(ctx, submissionID)
}

// Question loads a stored question by ID.
func (s *SessionService) Question(ctx context.Context, questionID string) (domain.Question, error) {
	return s.store.GetQuestion(ctx, questionID)
}

// QuizForSubmission resolves the quiz definition an attempt belongs to.
func (s *SessionService) QuizForSubmission(ctx context.Context, sub domain.Submission) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, sub.QuizID)
}

// Grade computes the attempt's grade: summed verification scores over the
// asked count, truncated to an integer percentage.
func (s *SessionService) Grade(ctx context.Context, sub domain.Submission) (domain.Grade, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Grade{}, err
	}
	correct := 0.0
	for _, ans := range sub.Answers {
		question, err := s.store.GetQuestion(ctx, ans.QuestionID)
		if err != nil {
			return domain.Grade{}, err
		}
		correct += question.Score(ans.Values)
	}
	pct := 0.0
	if len(sub.Asked) > 0 {
		pct = math.Trunc(correct / float64(len(sub.Asked)) * 100)
	}
	return domain.ClassifyGrade(quiz.Levels, pct), nil
}

// finish computes the final grade, hands out any configured reward and
// notifies the completion listener. Failures here never fail the answer
// that completed the attempt.
func (s *SessionService) finish(ctx context.Context, sub domain.Submission) {
	grade, err := s.Grade(ctx, sub)
	if err != nil {
		log.Printf("grade submission %s: %v", sub.ID, err)
		return
	}
	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err == nil && quiz.RewardID > 0 && s.rewards != nil && rewardEarned(quiz.RewardStatus, grade.Level) {
		if err := s.rewards.Issue(ctx, sub, grade); err != nil {
			log.Printf("issue reward for submission %s: %v", sub.ID, err)
		}
	}
	if s.listener != nil {
		s.listener.SubmissionCompleted(sub, grade)
	}
}

func rewardEarned(status domain.RewardStatus, level domain.GradeLevel) bool {
	switch status {
	case domain.RewardOnFail:
		return level == domain.Failed
	case domain.RewardOnPass:
		return level == domain.Passed
	case domain.RewardAlways:
		return true
	}
	return false
}
