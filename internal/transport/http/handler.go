package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/leegarner/quizzer/internal/app"
	"github.com/leegarner/quizzer/internal/domain"
)

// Handler exposes the quiz-taking flow and the admin operations as a JSON
// API, with the exports served as CSV downloads.
type Handler struct {
	quizzes  *app.QuizService
	sessions *app.SessionService
	reports  *app.ReportService
}

func NewHandler(quizzes *app.QuizService, sessions *app.SessionService, reports *app.ReportService) *Handler {
	return &Handler{quizzes: quizzes, sessions: sessions, reports: reports}
}

// Register wires all routes into the mux. The acting user is identified by
// the userId query parameter; identity itself is handled upstream.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/quizzes", h.listQuizzes)
	mux.HandleFunc("POST /api/quizzes", h.saveQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/duplicate", h.duplicateQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/toggle", h.toggleQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/reset", h.resetQuiz)
	mux.HandleFunc("DELETE /api/quizzes/{id}", h.deleteQuiz)

	mux.HandleFunc("POST /api/quizzes/{id}/start", h.startQuiz)
	mux.HandleFunc("POST /api/submissions/{id}/intro", h.recordIntro)
	mux.HandleFunc("POST /api/submissions/{id}/answers", h.recordAnswer)
	mux.HandleFunc("POST /api/submissions/{id}/submit", h.submitAnswers)

	mux.HandleFunc("GET /api/quizzes/{id}/reports/questions", h.questionReport)
	mux.HandleFunc("GET /api/quizzes/{id}/reports/submitters", h.submitterReport)
	mux.HandleFunc("GET /api/quizzes/{id}/export/questions", h.questionExport)
	mux.HandleFunc("GET /api/quizzes/{id}/export/submitters", h.submitterExport)
}

type saveQuizRequest struct {
	Quiz  domain.Quiz `json:"quiz"`
	OldID string      `json:"oldId"`
}

// questionView is a question stripped of its correctness markers; it is
// what a quiz taker is allowed to see.
type questionView struct {
	ID       string              `json:"id"`
	Type     domain.QuestionType `json:"type"`
	Prompt   string              `json:"prompt"`
	HelpText string              `json:"helpText,omitempty"`
	Options  []optionView        `json:"options"`
}

type optionView struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type startResponse struct {
	SubmissionID string        `json:"submissionId"`
	IntroPending bool          `json:"introPending"`
	IntroText    string        `json:"introText,omitempty"`
	IntroFields  []string      `json:"introFields,omitempty"`
	Question     *questionView `json:"question,omitempty"`
	Completed    bool          `json:"completed"`
}

type answerRequest struct {
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

type answerResponse struct {
	AnswerMsg string        `json:"answerMsg,omitempty"`
	Question  *questionView `json:"question,omitempty"`
	Completed bool          `json:"completed"`
	Grade     *gradeView    `json:"grade,omitempty"`
}

type gradeView struct {
	Level      string  `json:"level"`
	CSSClass   string  `json:"cssClass"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message,omitempty"`
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	listings, err := h.quizzes.List(r.Context(), userID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) saveQuiz(w http.ResponseWriter, r *http.Request) {
	var req saveQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	saved, err := h.quizzes.Save(r.Context(), userID(r), req.Quiz, req.OldID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) duplicateQuiz(w http.ResponseWriter, r *http.Request) {
	copied, err := h.quizzes.Duplicate(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, copied)
}

func (h *Handler) toggleQuiz(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.quizzes.ToggleEnabled(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *Handler) resetQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.quizzes.Reset(r.Context(), userID(r), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.quizzes.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	quizID := r.PathValue("id")
	sub, err := h.sessions.GetOrCreateCurrent(ctx, quizID, userID(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := startResponse{SubmissionID: sub.ID}
	if !sub.IntroDone {
		quiz, err := h.sessions.QuizForSubmission(ctx, sub)
		if err != nil {
			h.fail(w, err)
			return
		}
		resp.IntroPending = true
		resp.IntroText = quiz.IntroText
		resp.IntroFields = quiz.IntroFields
		writeJSON(w, http.StatusOK, resp)
		return
	}

	question, ok, err := h.sessions.NextQuestion(ctx, sub.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		resp.Completed = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	view := viewOf(question)
	resp.Question = &view
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordIntro(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.sessions.RecordIntroFields(r.Context(), userID(r), r.PathValue("id"), values); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID := r.PathValue("id")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.sessions.RecordAnswer(ctx, userID(r), submissionID, req.QuestionID, req.Values); err != nil {
		h.fail(w, err)
		return
	}

	resp := answerResponse{}
	if q, err := h.sessions.Question(ctx, req.QuestionID); err == nil {
		resp.AnswerMsg = q.AnswerMsg
	}
	next, ok, err := h.sessions.NextQuestion(ctx, submissionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if ok {
		view := viewOf(next)
		resp.Question = &view
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Completed = true
	grade, msg, err := h.finalGrade(r, submissionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp.Grade = &gradeView{
		Level:      grade.Level.String(),
		CSSClass:   grade.CSSClass,
		Percentage: grade.Percentage,
		Message:    msg,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	var answers map[string][]string
	if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := h.sessions.SubmitAnswers(r.Context(), userID(r), r.PathValue("id"), answers)
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": verrs})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	grade, msg, err := h.finalGrade(r, r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Completed: true,
		Grade: &gradeView{
			Level:      grade.Level.String(),
			CSSClass:   grade.CSSClass,
			Percentage: grade.Percentage,
			Message:    msg,
		},
	})
}

func (h *Handler) questionReport(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.PerQuestionStats(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) submitterReport(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.PerSubmitterStats(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) questionExport(w http.ResponseWriter, r *http.Request) {
	csv, err := h.reports.ExportByQuestion(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeCSV(w, "questions.csv", csv)
}

func (h *Handler) submitterExport(w http.ResponseWriter, r *http.Request) {
	csv, err := h.reports.ExportBySubmitter(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeCSV(w, "submitters.csv", csv)
}

func (h *Handler) finalGrade(r *http.Request, submissionID string) (domain.Grade, string, error) {
	ctx := r.Context()
	sub, err := h.sessions.Submission(ctx, submissionID)
	if err != nil {
		return domain.Grade{}, "", err
	}
	grade, err := h.sessions.Grade(ctx, sub)
	if err != nil {
		return domain.Grade{}, "", err
	}
	quiz, err := h.sessions.QuizForSubmission(ctx, sub)
	if err != nil {
		return domain.Grade{}, "", err
	}
	msg := quiz.FailMsg
	if grade.Level == domain.Passed {
		msg = quiz.PassMsg
	}
	return grade, msg, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	var verr domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoAccess):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrDuplicateSubmission):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrUnknownQuestion),
		errors.Is(err, domain.ErrNoQuestions),
		errors.As(err, &verrs),
		errors.As(err, &verr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func viewOf(q domain.Question) questionView {
	opts := make([]optionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, optionView{ID: o.ID, Value: o.Value})
	}
	return questionView{
		ID:       q.ID,
		Type:     q.Type,
		Prompt:   q.Prompt,
		HelpText: q.HelpText,
		Options:  opts,
	}
}

func userID(r *http.Request) string {
	return r.URL.Query().Get("userId")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeCSV(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Printf("write csv: %v", err)
	}
}
