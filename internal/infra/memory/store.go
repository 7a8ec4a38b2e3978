package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/leegarner/quizzer/internal/domain"
)

// Store is an in-memory implementation of app.Store, used by tests and the
// demo configuration.
type Store struct {
	mu          sync.RWMutex
	quizzes     map[string]domain.Quiz
	questions   map[string]domain.Question
	submissions map[string]domain.Submission
	// questionOrder preserves insertion order per quiz so selection and
	// reports are stable.
	questionOrder map[string][]string
	subOrder      map[string][]string
}

func NewStore() *Store {
	return &Store{
		quizzes:       make(map[string]domain.Quiz),
		questions:     make(map[string]domain.Question),
		submissions:   make(map[string]domain.Submission),
		questionOrder: make(map[string][]string),
		subOrder:      make(map[string][]string),
	}
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) PutQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, quizID)
	return nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.quizzes))
	for id := range s.quizzes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	quizzes := make([]domain.Quiz, 0, len(ids))
	for _, id := range ids {
		quizzes = append(quizzes, s.quizzes[id])
	}
	return quizzes, nil
}

func (s *Store) QuizIDExists(_ context.Context, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.quizzes[quizID]
	return ok, nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) QuestionsByQuiz(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.questionOrder[quizID]
	questions := make([]domain.Question, 0, len(order))
	for _, id := range order {
		if q, ok := s.questions[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (s *Store) PutQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.questions[question.ID]; !exists {
		s.questionOrder[question.QuizID] = append(s.questionOrder[question.QuizID], question.ID)
	}
	s.questions[question.ID] = question
	return nil
}

func (s *Store) DeleteQuestionsByQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.questionOrder[quizID] {
		delete(s.questions, id)
	}
	delete(s.questionOrder, quizID)
	return nil
}

func (s *Store) CreateSubmission(_ context.Context, sub domain.Submission, oneTime bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oneTime {
		for _, id := range s.subOrder[sub.QuizID] {
			if existing, ok := s.submissions[id]; ok && existing.UserID == sub.UserID {
				return domain.ErrDuplicateSubmission
			}
		}
	}
	s.subOrder[sub.QuizID] = append(s.subOrder[sub.QuizID], sub.ID)
	s.submissions[sub.ID] = sub
	return nil
}

func (s *Store) PutSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; !exists {
		s.subOrder[sub.QuizID] = append(s.subOrder[sub.QuizID], sub.ID)
	}
	s.submissions[sub.ID] = sub
	return nil
}

func (s *Store) GetSubmission(_ context.Context, submissionID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *Store) SubmissionsByQuiz(_ context.Context, quizID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.subOrder[quizID]
	subs := make([]domain.Submission, 0, len(order))
	for _, id := range order {
		if sub, ok := s.submissions[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *Store) SubmissionsByUser(ctx context.Context, quizID, userID string) ([]domain.Submission, error) {
	all, err := s.SubmissionsByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	subs := make([]domain.Submission, 0, len(all))
	for _, sub := range all {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *Store) CountSubmissions(_ context.Context, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subOrder[quizID]), nil
}

func (s *Store) DeleteSubmissionsByQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.subOrder[quizID] {
		delete(s.submissions, id)
	}
	delete(s.subOrder, quizID)
	return nil
}

func (s *Store) MigrateQuizID(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.questionOrder[oldID] {
		if q, ok := s.questions[id]; ok {
			q.QuizID = newID
			s.questions[id] = q
		}
	}
	for _, id := range s.subOrder[oldID] {
		if sub, ok := s.submissions[id]; ok {
			sub.QuizID = newID
			s.submissions[id] = sub
		}
	}
	s.questionOrder[newID] = append(s.questionOrder[newID], s.questionOrder[oldID]...)
	s.subOrder[newID] = append(s.subOrder[newID], s.subOrder[oldID]...)
	delete(s.questionOrder, oldID)
	delete(s.subOrder, oldID)
	return nil
}
