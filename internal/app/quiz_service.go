package app

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/leegarner/quizzer/internal/domain"
)

// QuizService owns the quiz definition lifecycle: save, duplicate, delete,
// enable/disable and reset.
type QuizService struct {
	store   Store
	quizzes QuizCache
	access  AccessChecker
	newID   func() string
}

func NewQuizService(store Store, quizzes QuizCache, access AccessChecker) *QuizService {
	return &QuizService{
		store:   store,
		quizzes: quizzes,
		access:  access,
		newID:   func() string { return uuid.NewString() },
	}
}

// Save persists a quiz definition. oldID carries the identifier the quiz
// was loaded under; pass "" for a new quiz. A name is required. If the
// identifier is new or changed and collides with an existing quiz, a fresh
// one is generated silently; the returned quiz carries the final ID. On a
// rename all questions and submissions are repointed before the old row is
// removed.
func (s *QuizService) Save(ctx context.Context, userID string, quiz domain.Quiz, oldID string) (domain.Quiz, error) {
	if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Name == "" {
		return domain.Quiz{}, domain.ErrNameRequired
	}

	if quiz.ID == "" {
		quiz.ID = s.newID()
	}
	if quiz.ID != oldID {
		exists, err := s.store.QuizIDExists(ctx, quiz.ID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if exists {
			// Collisions are resolved, not reported; the caller sees the
			// final ID in the returned quiz.
			regenerated := s.newID()
			log.Printf("quiz id %q already in use, regenerated as %q", quiz.ID, regenerated)
			quiz.ID = regenerated
		}
	}

	if err := s.store.PutQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}

	if oldID != "" && oldID != quiz.ID {
		if err := s.store.MigrateQuizID(ctx, oldID, quiz.ID); err != nil {
			return domain.Quiz{}, err
		}
		if err := s.store.DeleteQuiz(ctx, oldID); err != nil {
			return domain.Quiz{}, err
		}
		_ = s.quizzes.Invalidate(ctx, oldID)
	}
	_ = s.quizzes.Invalidate(ctx, quiz.ID)
	return quiz, nil
}

// Duplicate deep-copies a quiz and its questions under a new identifier.
// Submissions are not copied.
func (s *QuizService) Duplicate(ctx context.Context, userID, quizID string) (domain.Quiz, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
		return domain.Quiz{}, err
	}
	questions, err := s.store.QuestionsByQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	copyQuiz := quiz
	copyQuiz.ID = s.newID()
	copyQuiz.Name = quiz.Name + " -Copy"
	if err := s.store.PutQuiz(ctx, copyQuiz); err != nil {
		return domain.Quiz{}, err
	}
	for _, q := range questions {
		q.ID = s.newID()
		q.QuizID = copyQuiz.ID
		q.Options = append([]domain.Option(nil), q.Options...)
		if err := s.store.PutQuestion(ctx, q); err != nil {
			return domain.Quiz{}, err
		}
	}
	return copyQuiz, nil
}

// Delete removes a quiz definition and cascades to its questions and all
// submissions.
func (s *QuizService) Delete(ctx context.Context, userID, quizID string) error {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
		return err
	}
	if err := s.store.DeleteSubmissionsByQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := s.store.DeleteQuestionsByQuiz(ctx, quizID); err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	return s.quizzes.Invalidate(ctx, quizID)
}

// ToggleEnabled flips the published flag and returns the new value.
func (s *QuizService) ToggleEnabled(ctx context.Context, userID, quizID string) (bool, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
		return false, err
	}
	quiz.Enabled = !quiz.Enabled
	if err := s.store.PutQuiz(ctx, quiz); err != nil {
		return false, err
	}
	if err := s.quizzes.Invalidate(ctx, quizID); err != nil {
		return quiz.Enabled, err
	}
	return quiz.Enabled, nil
}

// Reset deletes a quiz's submissions so it can be taken again.
func (s *QuizService) Reset(ctx context.Context, userID, quizID string) error {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
		return err
	}
	return s.store.DeleteSubmissionsByQuiz(ctx, quizID)
}

// List returns the quiz definitions whose admin group admits the user,
// together with their submission counts, for the admin list. The full
// definition carries group and reward configuration, so quizzes the user
// cannot administer are left out entirely.
func (s *QuizService) List(ctx context.Context, userID string) ([]QuizListing, error) {
	quizzes, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	listings := make([]QuizListing, 0, len(quizzes))
	for _, quiz := range quizzes {
		if err := checkAccess(ctx, s.access, quiz, AccessAdmin, userID); err != nil {
			if errors.Is(err, domain.ErrNoAccess) {
				continue
			}
			return nil, err
		}
		count, err := s.store.CountSubmissions(ctx, quiz.ID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, QuizListing{Quiz: quiz, Submissions: count})
	}
	return listings, nil
}

// FirstEnabled returns the first enabled quiz that has at least one enabled
// question, for when no quiz ID is given.
func (s *QuizService) FirstEnabled(ctx context.Context) (domain.Quiz, error) {
	quizzes, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, quiz := range quizzes {
		if !quiz.Enabled {
			continue
		}
		questions, err := s.store.QuestionsByQuiz(ctx, quiz.ID)
		if err != nil {
			return domain.Quiz{}, err
		}
		for _, q := range questions {
			if q.Enabled {
				return quiz, nil
			}
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// QuizListing is one row of the admin quiz list.
type QuizListing struct {
	Quiz        domain.Quiz `json:"quiz"`
	Submissions int         `json:"submissions"`
}
