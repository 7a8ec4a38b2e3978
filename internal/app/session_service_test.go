package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leegarner/quizzer/internal/domain"
)

func checkboxQ(id, quizID string, partial bool) domain.Question {
	return domain.Question{
		ID:            id,
		QuizID:        quizID,
		Type:          domain.TypeCheckbox,
		Prompt:        "Select all that apply",
		PartialCredit: partial,
		Enabled:       true,
		Options: []domain.Option{
			{ID: "c1", Value: "yes", Correct: true},
			{ID: "c2", Value: "also yes", Correct: true},
			{ID: "c3", Value: "no"},
		},
	}
}

func TestCreateEnforcesOneTime(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.OneTime = true
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))

	if _, err := env.sessions.Create(ctx, "q1", "u1"); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	_, err := env.sessions.Create(ctx, "q1", "u1")
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	// A different user is not blocked.
	if _, err := env.sessions.Create(ctx, "q1", "u2"); err != nil {
		t.Fatalf("second user: %v", err)
	}
}

func TestCreateAllowsRetakesByDefault(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"))

	for i := 0; i < 3; i++ {
		if _, err := env.sessions.Create(ctx, "q1", "u1"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	count, _ := env.store.CountSubmissions(ctx, "q1")
	if count != 3 {
		t.Fatalf("expected 3 submissions, got %d", count)
	}
}

func TestGetOrCreateCurrentResumesOpenAttempt(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"), radioQ("ques2", "q1", "o2"))

	first, err := env.sessions.GetOrCreateCurrent(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := env.sessions.GetOrCreateCurrent(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected to resume %q, got %q", first.ID, again.ID)
	}

	// Finishing the attempt makes the next call start a fresh one.
	if err := env.sessions.RecordAnswer(ctx, "u1", first.ID, "ques1", []string{"o2"}); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	if err := env.sessions.RecordAnswer(ctx, "u1", first.ID, "ques2", []string{"o2"}); err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	fresh, err := env.sessions.GetOrCreateCurrent(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	if fresh.ID == first.ID {
		t.Fatalf("expected a new attempt after completion")
	}
}

func TestSelectQuestionsHonorsLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.NumQuestions = 2
	disabled := radioQ("ques3", "q1", "o2")
	disabled.Enabled = false
	seedQuiz(t, env, quiz,
		radioQ("ques1", "q1", "o2"),
		radioQ("ques2", "q1", "o2"),
		disabled,
		radioQ("ques4", "q1", "o2"),
	)

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sub.Asked) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(sub.Asked))
	}
	for _, id := range sub.Asked {
		if id == "ques3" {
			t.Fatalf("disabled question was selected")
		}
	}
}

func TestIntroFieldsGateQuestions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.IntroDone {
		t.Fatalf("quiz declares intro fields, intro must be pending")
	}
	if err := env.sessions.RecordIntroFields(ctx, "u1", sub.ID, map[string]string{"Full Name": "Pat"}); err != nil {
		t.Fatalf("intro: %v", err)
	}
	stored, err := env.sessions.Submission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.IntroDone || stored.IntroFields["Full Name"] != "Pat" {
		t.Fatalf("intro not recorded: %+v", stored)
	}
}

func TestRecordAnswerRejectsUnknownQuestion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = env.sessions.RecordAnswer(ctx, "u1", sub.ID, "not-asked", []string{"o2"})
	if !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected unknown question error, got %v", err)
	}
}

func TestRecordAnswerValidates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o1", "o2"})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// Nothing was stored for the rejected answer.
	stored, _ := env.sessions.Submission(ctx, sub.ID)
	if len(stored.Answers) != 0 {
		t.Fatalf("rejected answer was persisted: %+v", stored.Answers)
	}
}

func TestSubmitAnswersCollectsValidationErrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"),
		radioQ("ques1", "q1", "o2"),
		checkboxQ("ques2", "q1", false),
	)

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = env.sessions.SubmitAnswers(ctx, "u1", sub.ID, map[string][]string{
		"ques1": {},            // radio needs exactly one
		"ques2": {"c1", "bad"}, // unknown option
	})
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d: %v", len(verrs), verrs)
	}
}

func TestSubmitAnswersRejectsUnknownBeforeApplying(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"), radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = env.sessions.SubmitAnswers(ctx, "u1", sub.ID, map[string][]string{
		"ques1":   {"o2"},
		"unknown": {"o2"},
	})
	if !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected unknown question error, got %v", err)
	}
	stored, _ := env.sessions.Submission(ctx, sub.ID)
	if len(stored.Answers) != 0 {
		t.Fatalf("partial batch was persisted: %+v", stored.Answers)
	}
}

func TestGradeUsesOrderedThresholds(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"),
		radioQ("ques1", "q1", "o2"),
		checkboxQ("ques2", "q1", true),
	)

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 1.0 for the radio plus 0.5 partial credit: 1.5/2 = 75 -> warning.
	if err := env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o2"}); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	if err := env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques2", []string{"c1"}); err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	stored, _ := env.sessions.Submission(ctx, sub.ID)
	grade, err := env.sessions.Grade(ctx, stored)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if grade.Level != domain.Warning {
		t.Fatalf("expected warning, got %v", grade.Level)
	}
	if grade.Percentage != 75 {
		t.Fatalf("expected 75%%, got %v", grade.Percentage)
	}
}

func TestCompletionIssuesReward(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.IntroFields = nil
	quiz.RewardID = 42
	quiz.RewardStatus = domain.RewardOnPass
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o2"}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	issued := env.rewards.Issued()
	if len(issued) != 1 {
		t.Fatalf("expected one reward, got %d", len(issued))
	}
	if issued[0].UserID != "u1" || issued[0].Level != domain.Passed {
		t.Fatalf("unexpected reward: %+v", issued[0])
	}
}

func TestCompletionSkipsRewardOnFail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.IntroFields = nil
	quiz.RewardID = 42
	quiz.RewardStatus = domain.RewardOnPass
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o1"}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if issued := env.rewards.Issued(); len(issued) != 0 {
		t.Fatalf("failing attempt must not earn a pass reward: %+v", issued)
	}
}

func TestAnswerPathRequiresAttemptOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.FillGroupID = 9
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))
	env.access.AddMember(9, "member")
	env.access.AddMember(9, "other")

	sub, err := env.sessions.Create(ctx, "q1", "member")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user holding the submission ID cannot touch the attempt,
	// fill group membership or not.
	err = env.sessions.RecordAnswer(ctx, "other", sub.ID, "ques1", []string{"o2"})
	if !errors.Is(err, domain.ErrNoAccess) {
		t.Fatalf("expected access denial, got %v", err)
	}
	err = env.sessions.RecordIntroFields(ctx, "other", sub.ID, map[string]string{"Full Name": "X"})
	if !errors.Is(err, domain.ErrNoAccess) {
		t.Fatalf("expected intro denial, got %v", err)
	}
	err = env.sessions.SubmitAnswers(ctx, "other", sub.ID, map[string][]string{"ques1": {"o2"}})
	if !errors.Is(err, domain.ErrNoAccess) {
		t.Fatalf("expected batch denial, got %v", err)
	}
	stored, _ := env.sessions.Submission(ctx, sub.ID)
	if len(stored.Answers) != 0 || stored.IntroDone {
		t.Fatalf("foreign writes were persisted: %+v", stored)
	}

	// The owner is unaffected.
	if err := env.sessions.RecordAnswer(ctx, "member", sub.ID, "ques1", []string{"o2"}); err != nil {
		t.Fatalf("owner answer: %v", err)
	}
}

func TestAnswerPathRequiresFillAccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))

	sub, err := env.sessions.Create(ctx, "q1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Tightening the fill group after the attempt started locks the
	// attempt too.
	quiz.FillGroupID = 9
	if err := env.store.PutQuiz(ctx, quiz); err != nil {
		t.Fatalf("put quiz: %v", err)
	}
	if err := env.cache.Invalidate(ctx, "q1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	err = env.sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o2"})
	if !errors.Is(err, domain.ErrNoAccess) {
		t.Fatalf("expected access denial, got %v", err)
	}
}

func TestCreateRequiresQuestions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedQuiz(t, env, testQuiz("q1"))
	disabledOnly := testQuiz("q2")
	disabled := radioQ("ques1", "q2", "o2")
	disabled.Enabled = false
	seedQuiz(t, env, disabledOnly, disabled)

	if _, err := env.sessions.Create(ctx, "q1", "u1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("empty quiz: expected no-questions error, got %v", err)
	}
	if _, err := env.sessions.Create(ctx, "q2", "u1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("disabled-only quiz: expected no-questions error, got %v", err)
	}
}

func TestFillAccessEnforced(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	quiz := testQuiz("q1")
	quiz.FillGroupID = 9
	seedQuiz(t, env, quiz, radioQ("ques1", "q1", "o2"))

	if _, err := env.sessions.Create(ctx, "q1", "outsider"); !errors.Is(err, domain.ErrNoAccess) {
		t.Fatalf("expected access denial, got %v", err)
	}
	env.access.AddMember(9, "member")
	if _, err := env.sessions.Create(ctx, "q1", "member"); err != nil {
		t.Fatalf("member should start the quiz: %v", err)
	}
}
