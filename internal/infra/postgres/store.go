package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/leegarner/quizzer/internal/domain"
)

// Store is the Postgres implementation of app.Store. Rows keep the full
// entity as JSONB next to the columns needed for lookups and cascades.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) PutQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quizzes (id, name, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, data=EXCLUDED.data`,
		quiz.ID, quiz.Name, data)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	var quizzes []domain.Quiz
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (s *Store) QuizIDExists(ctx context.Context, quizID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE id=$1)`, quizID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quiz id: %w", err)
	}
	return exists, nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

func (s *Store) QuestionsByQuiz(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

func (s *Store) PutQuestion(ctx context.Context, question domain.Question) error {
	data, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (id, quiz_id, position, data)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position),0)+1 FROM questions WHERE quiz_id=$2), $3)
		ON CONFLICT (id) DO UPDATE SET quiz_id=EXCLUDED.quiz_id, data=EXCLUDED.data`,
		question.ID, question.QuizID, data)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuestionsByQuiz(ctx context.Context, quizID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}

// CreateSubmission inserts a new attempt. For one-time quizzes the check
// and insert run in one transaction guarded by an advisory lock on
// (quiz, user), so two concurrent first attempts cannot both slip through.
func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission, oneTime bool) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if !oneTime {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO submissions (id, quiz_id, user_id, started_at, data)
			VALUES ($1, $2, $3, $4, $5)`,
			sub.ID, sub.QuizID, sub.UserID, sub.StartedAt, data)
		if err != nil {
			return fmt.Errorf("create submission: %w", err)
		}
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, sub.QuizID, sub.UserID); err != nil {
		return fmt.Errorf("lock submission slot: %w", err)
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE quiz_id=$1 AND user_id=$2)`,
		sub.QuizID, sub.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("check existing submission: %w", err)
	}
	if exists {
		return domain.ErrDuplicateSubmission
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO submissions (id, quiz_id, user_id, started_at, data)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.QuizID, sub.UserID, sub.StartedAt, data); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) PutSubmission(ctx context.Context, sub domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (id, quiz_id, user_id, started_at, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET quiz_id=EXCLUDED.quiz_id, data=EXCLUDED.data`,
		sub.ID, sub.QuizID, sub.UserID, sub.StartedAt, data)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM submissions WHERE id=$1`, submissionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	var sub domain.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	return sub, nil
}

func (s *Store) SubmissionsByQuiz(ctx context.Context, quizID string) ([]domain.Submission, error) {
	return s.submissions(ctx, `SELECT data FROM submissions WHERE quiz_id=$1 ORDER BY started_at, id`, quizID)
}

func (s *Store) SubmissionsByUser(ctx context.Context, quizID, userID string) ([]domain.Submission, error) {
	return s.submissions(ctx, `SELECT data FROM submissions WHERE quiz_id=$1 AND user_id=$2 ORDER BY started_at, id`, quizID, userID)
}

func (s *Store) submissions(ctx context.Context, query string, args ...interface{}) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	var subs []domain.Submission
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		var sub domain.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) CountSubmissions(ctx context.Context, quizID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE quiz_id=$1`, quizID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteSubmissionsByQuiz(ctx context.Context, quizID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM submissions WHERE quiz_id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	return nil
}

// MigrateQuizID repoints questions and submissions after a quiz rename.
// The JSONB copies are updated alongside the indexed columns.
func (s *Store) MigrateQuizID(ctx context.Context, oldID, newID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE questions SET quiz_id=$2, data=jsonb_set(data, '{quizId}', to_jsonb($2::text))
		WHERE quiz_id=$1`, oldID, newID); err != nil {
		return fmt.Errorf("migrate questions: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE submissions SET quiz_id=$2, data=jsonb_set(data, '{quizId}', to_jsonb($2::text))
		WHERE quiz_id=$1`, oldID, newID); err != nil {
		return fmt.Errorf("migrate submissions: %w", err)
	}
	return tx.Commit(ctx)
}
