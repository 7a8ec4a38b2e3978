package memory

import (
	"context"
	"log"
	"sync"

	"github.com/leegarner/quizzer/internal/domain"
)

// LogRewards records issued rewards in memory and logs them. Stands in for
// whatever external system actually hands out rewards.
type LogRewards struct {
	mu     sync.Mutex
	issued []IssuedReward
}

// IssuedReward remembers one reward grant for inspection.
type IssuedReward struct {
	SubmissionID string
	UserID       string
	Level        domain.GradeLevel
}

func NewLogRewards() *LogRewards {
	return &LogRewards{}
}

func (r *LogRewards) Issue(_ context.Context, sub domain.Submission, grade domain.Grade) error {
	r.mu.Lock()
	r.issued = append(r.issued, IssuedReward{SubmissionID: sub.ID, UserID: sub.UserID, Level: grade.Level})
	r.mu.Unlock()
	log.Printf("reward issued to %s for quiz %s (%s, %.0f%%)", sub.UserID, sub.QuizID, grade.Level, grade.Percentage)
	return nil
}

// Issued returns a copy of everything granted so far.
func (r *LogRewards) Issued() []IssuedReward {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]IssuedReward(nil), r.issued...)
}
