package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/leegarner/quizzer/internal/app"
	"github.com/leegarner/quizzer/internal/domain"
)

// ResultsHub streams refreshed per-submitter summaries to result viewers
// over websockets. Every completed submission triggers a recomputation for
// each watcher of that quiz.
type ResultsHub struct {
	reports  *app.ReportService
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	userID string
	send   chan []app.SubmitterStats
}

type resultsMessage struct {
	Type    string               `json:"type"`
	Payload []app.SubmitterStats `json:"payload"`
}

func NewResultsHub(reports *app.ReportService) *ResultsHub {
	return &ResultsHub{
		reports: reports,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// SubmissionCompleted implements app.CompletionListener. Each watcher gets
// a summary computed under its own identity, so access rules keep applying.
func (h *ResultsHub) SubmissionCompleted(sub domain.Submission, _ domain.Grade) {
	h.mu.Lock()
	current := make([]*watcher, 0, len(h.watchers[sub.QuizID]))
	for w := range h.watchers[sub.QuizID] {
		current = append(current, w)
	}
	h.mu.Unlock()

	ctx := context.Background()
	for _, w := range current {
		stats, err := h.reports.PerSubmitterStats(ctx, w.userID, sub.QuizID)
		if err != nil {
			log.Printf("refresh results for %s: %v", sub.QuizID, err)
			continue
		}
		select {
		case w.send <- stats:
		default:
			// drop the stale update so a slow client never blocks the hub
			select {
			case <-w.send:
			default:
			}
			select {
			case w.send <- stats:
			default:
			}
		}
	}
}

// ServeWS upgrades the request and streams summary refreshes until the
// client disconnects. The initial snapshot doubles as the access check.
func (h *ResultsHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	uid := r.URL.Query().Get("userId")
	if quizID == "" || uid == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	initial, err := h.reports.PerSubmitterStats(r.Context(), uid, quizID)
	if err != nil {
		status := http.StatusInternalServerError
		if err == domain.ErrNoAccess {
			status = http.StatusForbidden
		} else if err == domain.ErrQuizNotFound {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	watch := &watcher{userID: uid, send: make(chan []app.SubmitterStats, 8)}
	h.mu.Lock()
	if h.watchers[quizID] == nil {
		h.watchers[quizID] = make(map[*watcher]struct{})
	}
	h.watchers[quizID][watch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.watchers[quizID], watch)
		if len(h.watchers[quizID]) == 0 {
			delete(h.watchers, quizID)
		}
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// reads only detect disconnects; clients have nothing to say
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(resultsMessage{Type: "results", Payload: initial}); err != nil {
		return
	}
	for {
		select {
		case stats := <-watch.send:
			if err := conn.WriteJSON(resultsMessage{Type: "results", Payload: stats}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
