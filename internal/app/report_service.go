package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/leegarner/quizzer/internal/domain"
)

// ReportService aggregates completed and in-progress submissions into
// per-question and per-submitter statistics and the CSV exports.
type ReportService struct {
	store   Store
	quizzes QuizSource
	access  AccessChecker
}

func NewReportService(store Store, quizzes QuizSource, access AccessChecker) *ReportService {
	return &ReportService{store: store, quizzes: quizzes, access: access}
}

// QuestionStats summarizes how all submitters did on one question.
type QuestionStats struct {
	QuestionID    string `json:"questionId"`
	Prompt        string `json:"prompt"`
	TotalAnswered int    `json:"totalAnswered"`
	TotalCorrect  int    `json:"totalCorrect"`
	Percentage    int    `json:"percentage"`
	CSSClass      string `json:"cssClass"`
}

// SubmitterStats summarizes one submission. CorrectCount may be fractional
// when partial credit is in play; it is rounded to two decimals for display
// only, after aggregation.
type SubmitterStats struct {
	UserID        string            `json:"userId"`
	SubmissionID  string            `json:"submissionId"`
	IntroFields   map[string]string `json:"introFields"`
	CorrectCount  float64           `json:"correctCount"`
	TotalAnswered int               `json:"totalAnswered"`
	TotalAsked    int               `json:"totalAsked"`
	Percentage    int               `json:"percentage"`
	AllAnswered   bool              `json:"allAnswered"`
	CSSClass      string            `json:"cssClass"`
}

// PerQuestionStats iterates every question of the quiz and every stored
// answer for it across all submissions. A fractional partial-credit score
// counts as a correct answer when it is non-zero, matching the summary
// screens. Questions nobody answered report percentage 0.
func (s *ReportService) PerQuestionStats(ctx context.Context, userID, quizID string) ([]QuestionStats, error) {
	quiz, questions, subs, err := s.load(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	stats := make([]QuestionStats, 0, len(questions))
	for _, q := range questions {
		total := 0
		correct := 0
		for _, sub := range subs {
			values, ok := sub.AnswerFor(q.ID)
			if !ok {
				continue
			}
			total++
			if q.Score(values) > 0 {
				correct++
			}
		}
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(correct) / float64(total) * 100))
		}
		stats = append(stats, QuestionStats{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			TotalAnswered: total,
			TotalCorrect:  correct,
			Percentage:    pct,
			CSSClass:      domain.ClassifyGrade(quiz.Levels, float64(pct)).CSSClass,
		})
	}
	return stats, nil
}

// PerSubmitterStats sums verification scores per submission. The integer
// percentage truncates rather than rounds, so 8.9/10 still reads as 89%
// answered but 89.9% scores as 89.
func (s *ReportService) PerSubmitterStats(ctx context.Context, userID, quizID string) ([]SubmitterStats, error) {
	quiz, questions, subs, err := s.load(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	byID := questionIndex(questions)

	stats := make([]SubmitterStats, 0, len(subs))
	for _, sub := range subs {
		correct := 0.0
		for _, ans := range sub.Answers {
			if q, ok := byID[ans.QuestionID]; ok {
				correct += q.Score(ans.Values)
			}
		}
		asked := len(sub.Asked)
		pct := 0
		if asked > 0 {
			pct = int(correct / float64(asked) * 100)
		}
		stats = append(stats, SubmitterStats{
			UserID:        sub.UserID,
			SubmissionID:  sub.ID,
			IntroFields:   sub.IntroFields,
			CorrectCount:  math.Round(correct*100) / 100,
			TotalAnswered: len(sub.Answers),
			TotalAsked:    asked,
			Percentage:    pct,
			AllAnswered:   len(sub.Answers) == asked,
			CSSClass:      domain.ClassifyGrade(quiz.Levels, float64(pct)).CSSClass,
		})
	}
	return stats, nil
}

// ExportBySubmitter renders one row per submission: the intro field values
// followed by 1/0 correctness per question. Every cell is double-quoted and
// embedded double quotes are replaced with single quotes; existing
// consumers depend on that exact format, so no RFC-4180 escaping.
func (s *ReportService) ExportBySubmitter(ctx context.Context, userID, quizID string) (string, error) {
	quiz, questions, subs, err := s.load(ctx, userID, quizID)
	if err != nil {
		return "", err
	}

	headers := append([]string{}, quiz.IntroFields...)
	for _, q := range questions {
		headers = append(headers, "q_"+q.ID)
	}

	var b strings.Builder
	b.WriteString(quoteRow(headers))
	for _, sub := range subs {
		row := make([]string, 0, len(headers))
		for _, label := range quiz.IntroFields {
			row = append(row, sub.IntroFields[label])
		}
		for _, q := range questions {
			values, ok := sub.AnswerFor(q.ID)
			if !ok {
				row = append(row, "")
				continue
			}
			// The export is binary: any non-zero partial credit counts
			// as correct.
			if q.Score(values) > 0 {
				row = append(row, "1")
			} else {
				row = append(row, "0")
			}
		}
		b.WriteString(quoteRow(row))
	}
	return b.String(), nil
}

// ExportByQuestion renders one row per question with the total and correct
// response counts. Only the question text is quoted; the counts are bare.
func (s *ReportService) ExportByQuestion(ctx context.Context, userID, quizID string) (string, error) {
	_, questions, subs, err := s.load(ctx, userID, quizID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(quoteRow([]string{"Question", "Answers", "Correct"}))
	for _, q := range questions {
		total := 0
		correct := 0
		for _, sub := range subs {
			values, ok := sub.AnswerFor(q.ID)
			if !ok {
				continue
			}
			total++
			if q.Score(values) > 0 {
				correct++
			}
		}
		prompt := strings.ReplaceAll(q.Prompt, `"`, "'")
		fmt.Fprintf(&b, "\"%s\",%d,%d\n", prompt, total, correct)
	}
	return b.String(), nil
}

func (s *ReportService) load(ctx context.Context, userID, quizID string) (domain.Quiz, []domain.Question, []domain.Submission, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	if err := checkAccess(ctx, s.access, quiz, AccessView, userID); err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	questions, err := s.store.QuestionsByQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	subs, err := s.store.SubmissionsByQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, nil, err
	}
	return quiz, questions, subs, nil
}

func questionIndex(questions []domain.Question) map[string]domain.Question {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

// quoteRow joins cells into one quoted line. Double quotes inside a cell
// become single quotes to keep the row intact.
func quoteRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, `"`, "'")
	}
	return `"` + strings.Join(escaped, `","`) + "\"\n"
}
