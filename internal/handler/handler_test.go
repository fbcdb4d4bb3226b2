package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"tcfwrite/internal/exam"
	"tcfwrite/internal/i18n"
	"tcfwrite/internal/model"
	"tcfwrite/internal/store"
)

type stubScorer struct{}

func (stubScorer) Score(_ context.Context, _ int, _ string) (*model.AIFeedback, error) {
	return &model.AIFeedback{
		NCLCLevel:   "NCLC 7",
		GlobalScore: 70,
		Criteria:    model.Criteria{Coherence: 7, Lexique: 7, Syntaxe: 7},
	}, nil
}

type testServer struct {
	srv     *httptest.Server
	handler *Handler
	store   *store.Store
	exams   *exam.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	svc := exam.NewService(s, stubScorer{})
	h := New(s, svc, model.ServerConfig{DefaultLang: "en"})

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, handler: h, store: s, exams: svc}
}

// register creates an account through the API and returns its token.
func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username": %q, "password": "secret123"}`, username)
	resp := ts.do(t, http.MethodPost, "/api/register", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("register: decode: %v", err)
	}
	if out.Token == "" {
		t.Fatal("register: empty token")
	}
	return out.Token
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// startExam starts an exam over the API and returns its id.
func (ts *testServer) startExam(t *testing.T, token string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/exam/start", token, "{}")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start exam: status %d", resp.StatusCode)
	}
	var out struct {
		Exam model.Exam `json:"exam"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("start exam: decode: %v", err)
	}
	return out.Exam.ID
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/exam/start", "", "{}")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	resp := ts.do(t, http.MethodPost, "/api/login", "", `{"username": "alice", "password": "secret123"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login: expected 200, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/login", "", `{"username": "alice", "password": "wrong"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", resp.StatusCode)
	}
}

func TestExamLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "bob")
	examID := ts.startExam(t, token)

	// Edit task 1 and read back its recomputed word count.
	resp := ts.do(t, http.MethodPut, "/api/exam/"+examID+"/task/1", token,
		`{"content": "Salut Marie je suis bien arrivé"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit task: status %d", resp.StatusCode)
	}
	var state struct {
		Phase string `json:"phase"`
		Tasks []struct {
			TaskNumber int    `json:"task_number"`
			WordCount  int    `json:"word_count"`
			Status     string `json:"status"`
		} `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	resp.Body.Close()
	if state.Phase != string(model.PhaseRunning) {
		t.Errorf("expected running phase, got %q", state.Phase)
	}
	if state.Tasks[0].WordCount != 6 {
		t.Errorf("expected 6 words, got %d", state.Tasks[0].WordCount)
	}
	if state.Tasks[0].Status != "below" {
		t.Errorf("expected below-minimum status, got %q", state.Tasks[0].Status)
	}

	// Submission succeeds even though drafts are under their minimums.
	resp = ts.do(t, http.MethodPost, "/api/exam/"+examID+"/submit", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	ts.exams.Wait()

	// A second submit hits the lock.
	resp = ts.do(t, http.MethodPost, "/api/exam/"+examID+"/submit", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("resubmit: expected 409, got %d", resp.StatusCode)
	}

	// Results carry the scored tasks.
	resp = ts.do(t, http.MethodGet, "/api/exam/"+examID+"/results", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results: status %d", resp.StatusCode)
	}
	var results struct {
		Scored          int  `json:"scored"`
		ScoringComplete bool `json:"scoring_complete"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	resp.Body.Close()
	if !results.ScoringComplete || results.Scored != 3 {
		t.Errorf("expected 3 scored tasks, got %d (complete=%v)", results.Scored, results.ScoringComplete)
	}
}

func TestSubmitForeignExam(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register(t, "owner")
	intruder := ts.register(t, "intruder")
	examID := ts.startExam(t, owner)

	resp := ts.do(t, http.MethodPost, "/api/exam/"+examID+"/submit", intruder, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for foreign exam, got %d", resp.StatusCode)
	}
}

func TestSubmitMissingExam(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "carol")

	resp := ts.do(t, http.MethodPost, "/api/exam/no-such-id/submit", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing exam, got %d", resp.StatusCode)
	}
}

func TestEditAfterSubmitIsNoOp(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "dave")
	examID := ts.startExam(t, token)

	resp := ts.do(t, http.MethodPut, "/api/exam/"+examID+"/task/1", token, `{"content": "avant la soumission"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: status %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/exam/"+examID+"/submit", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	ts.exams.Wait()

	resp = ts.do(t, http.MethodPut, "/api/exam/"+examID+"/task/1", token, `{"content": "modification tardive"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("late edit: status %d", resp.StatusCode)
	}
	var state struct {
		Tasks []struct {
			Content string `json:"content"`
		} `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	resp.Body.Close()
	if state.Tasks[0].Content != "avant la soumission" {
		t.Errorf("locked draft changed: %q", state.Tasks[0].Content)
	}
}

func TestAdminRoleGate(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "eve")

	resp := ts.do(t, http.MethodGet, "/api/admin/users", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("student on admin route: expected 403, got %d", resp.StatusCode)
	}
}

func TestPeerFeedbackRoundtrip(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "frank")
	examID := ts.startExam(t, token)

	resp := ts.do(t, http.MethodPost, "/api/exam/"+examID+"/submit", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	var submitted struct {
		TaskIDs []string `json:"task_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	resp.Body.Close()
	ts.exams.Wait()

	taskID := submitted.TaskIDs[0]
	resp = ts.do(t, http.MethodPost, "/api/tasks/"+taskID+"/feedback", token,
		`{"comment": "Bonne structure, attention aux accords.", "rating": 4}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create feedback: status %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/tasks/"+taskID+"/feedback", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list feedback: status %d", resp.StatusCode)
	}
	var listed struct {
		Feedbacks []model.PeerFeedback `json:"feedbacks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	resp.Body.Close()
	if len(listed.Feedbacks) != 1 || listed.Feedbacks[0].Rating != 4 {
		t.Errorf("unexpected feedback list: %+v", listed.Feedbacks)
	}
}
