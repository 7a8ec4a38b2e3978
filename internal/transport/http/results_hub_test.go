package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leegarner/quizzer/internal/app"
	"github.com/leegarner/quizzer/internal/domain"
	"github.com/leegarner/quizzer/internal/infra/memory"
)

func newResultsServer(t *testing.T) (*httptest.Server, *app.SessionService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewQuizCache(store, time.Minute)
	access := memory.NewGroupChecker()
	rewards := memory.NewLogRewards()

	reports := app.NewReportService(store, cache, access)
	sessions := app.NewSessionService(store, cache, access, rewards)
	hub := NewResultsHub(reports)
	sessions.SetCompletionListener(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/results", hub.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, sessions, store
}

func dialResults(t *testing.T, srv *httptest.Server, quizID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/results?quizId=" + quizID + "&userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readResults(t *testing.T, conn *websocket.Conn) resultsMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	var msg resultsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestResultsStreamPushesCompletions(t *testing.T) {
	srv, sessions, store := newResultsServer(t)
	ctx := context.Background()
	quiz := domain.Quiz{ID: "quiz-1", Name: "live", Levels: []float64{80, 50, 20}, Enabled: true}
	question := domain.Question{
		ID: "ques1", QuizID: "quiz-1", Type: domain.TypeRadio, Prompt: "p", Enabled: true,
		Options: []domain.Option{{ID: "o1", Value: "no"}, {ID: "o2", Value: "yes", Correct: true}},
	}
	seedQuiz(t, store, quiz, question)

	conn := dialResults(t, srv, "quiz-1", "viewer")

	// The snapshot on connect is empty.
	msg := readResults(t, conn)
	if msg.Type != "results" || len(msg.Payload) != 0 {
		t.Fatalf("unexpected initial message: %+v", msg)
	}

	// A finished attempt is pushed to the watcher.
	sub, err := sessions.Create(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := sessions.RecordAnswer(ctx, "u1", sub.ID, "ques1", []string{"o2"}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	msg = readResults(t, conn)
	if len(msg.Payload) != 1 {
		t.Fatalf("expected one submitter, got %+v", msg.Payload)
	}
	got := msg.Payload[0]
	if got.UserID != "u1" || got.Percentage != 100 || !got.AllAnswered {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestCompletionNeverBlocksOnStalledWatcher(t *testing.T) {
	store := memory.NewStore()
	cache := memory.NewQuizCache(store, time.Minute)
	access := memory.NewGroupChecker()
	reports := app.NewReportService(store, cache, access)
	hub := NewResultsHub(reports)

	quiz := domain.Quiz{ID: "quiz-1", Name: "stalled", Enabled: true}
	if err := store.PutQuiz(context.Background(), quiz); err != nil {
		t.Fatalf("put quiz: %v", err)
	}

	// An unbuffered channel with no reader stands in for a watcher whose
	// buffer never drains.
	stalled := &watcher{userID: "viewer", send: make(chan []app.SubmitterStats)}
	hub.mu.Lock()
	hub.watchers["quiz-1"] = map[*watcher]struct{}{stalled: {}}
	hub.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			hub.SubmissionCompleted(domain.Submission{ID: "r1", QuizID: "quiz-1", UserID: "u1"}, domain.Grade{})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("completion blocked on a stalled watcher")
	}
}

func TestResultsStreamRequiresParams(t *testing.T) {
	srv, _, _ := newResultsServer(t)
	resp, err := http.Get(srv.URL + "/ws/results?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestResultsStreamChecksAccessBeforeUpgrade(t *testing.T) {
	srv, _, store := newResultsServer(t)
	quiz := domain.Quiz{ID: "quiz-1", Name: "guarded", ResultsGroupID: 5, Enabled: true}
	seedQuiz(t, store, quiz)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/results?quizId=quiz-1&userId=outsider"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake response, got %+v", resp)
	}
}
