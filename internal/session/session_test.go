package session

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tcfwrite/internal/model"
	"tcfwrite/internal/words"
)

// nWords returns content with exactly n whitespace-separated words.
func nWords(n int) string {
	return strings.TrimSpace(strings.Repeat("mot ", n))
}

func runningMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine()
	m.Start("exam-1", nil)
	if m.Phase() != model.PhaseRunning {
		t.Fatalf("expected running phase, got %q", m.Phase())
	}
	return m
}

func TestStartOnlyFromIdle(t *testing.T) {
	m := runningMachine(t)
	m.EditTask(1, "brouillon")
	m.Submit()

	// Start on a non-idle machine is a no-op: no new id, no cleared draft.
	m.Start("exam-2", nil)
	if m.Phase() != model.PhaseSubmitted {
		t.Errorf("expected submitted after ignored start, got %q", m.Phase())
	}
	if m.ExamID() != "exam-1" {
		t.Errorf("exam id changed on ignored start: %q", m.ExamID())
	}

	// After Reset, a fresh attempt starts clean.
	m.Reset()
	m.Start("exam-2", nil)
	snap := m.Snapshot()
	if snap.Phase != model.PhaseRunning {
		t.Fatalf("expected running, got %q", snap.Phase)
	}
	if snap.SecondsRemaining != model.ExamDurationSeconds {
		t.Errorf("timer not reset: %d", snap.SecondsRemaining)
	}
	for i, task := range snap.Tasks {
		if task.Content != "" || task.WordCount != 0 {
			t.Errorf("task %d not cleared: %+v", i+1, task)
		}
	}
	if snap.ActiveTask != 1 {
		t.Errorf("active task not reset: %d", snap.ActiveTask)
	}
}

func TestEditTaskRecomputesWordCount(t *testing.T) {
	m := runningMachine(t)

	m.EditTask(2, "  bonjour   le monde  ")
	tasks := m.Drafts()
	if tasks[1].WordCount != 3 {
		t.Errorf("expected word count 3, got %d", tasks[1].WordCount)
	}
	if tasks[1].WordCount != words.Count(tasks[1].Content) {
		t.Error("stored word count diverges from Count(content)")
	}

	m.EditTask(2, "")
	tasks = m.Drafts()
	if tasks[1].WordCount != 0 || tasks[1].Content != "" {
		t.Errorf("expected empty draft, got %+v", tasks[1])
	}

	// Out-of-range task numbers are ignored.
	m.EditTask(0, "x")
	m.EditTask(4, "x")
}

func TestLockBlocksEdits(t *testing.T) {
	m := runningMachine(t)
	m.EditTask(1, nWords(80))
	m.EditTask(2, nWords(130))
	m.EditTask(3, nWords(140))
	before := m.Drafts()

	m.Submit()
	for n := 1; n <= model.TaskCount; n++ {
		m.EditTask(n, "tentative après verrouillage")
	}
	if m.Drafts() != before {
		t.Error("edit after submit mutated drafts")
	}

	m.MarkResults()
	m.EditTask(1, "encore")
	if m.Drafts() != before {
		t.Error("edit in results phase mutated drafts")
	}
}

func TestTickCountdownAndAutoSubmit(t *testing.T) {
	m := runningMachine(t)

	if m.Tick() {
		t.Error("first tick should not expire a full timer")
	}
	if got := m.Snapshot().SecondsRemaining; got != model.ExamDurationSeconds-1 {
		t.Errorf("expected %d remaining, got %d", model.ExamDurationSeconds-1, got)
	}

	// Drain the timer.
	m.mu.Lock()
	m.secondsRemaining = 1
	m.mu.Unlock()

	if !m.Tick() {
		t.Fatal("expected expiry transition")
	}
	snap := m.Snapshot()
	if snap.Phase != model.PhaseSubmitted {
		t.Errorf("expected submitted, got %q", snap.Phase)
	}
	if snap.SecondsRemaining != 0 {
		t.Errorf("expected 0 remaining, got %d", snap.SecondsRemaining)
	}

	// Idempotent: repeated ticks after expiry change nothing.
	for i := 0; i < 3; i++ {
		if m.Tick() {
			t.Error("tick after expiry reported expiry again")
		}
	}
	snap = m.Snapshot()
	if snap.Phase != model.PhaseSubmitted || snap.SecondsRemaining != 0 {
		t.Errorf("state drifted after post-expiry ticks: %+v", snap)
	}
}

func TestTickIgnoredWhenNotRunning(t *testing.T) {
	m := NewMachine()
	if m.Tick() {
		t.Error("tick on idle machine reported expiry")
	}
	if got := m.Snapshot().SecondsRemaining; got != model.ExamDurationSeconds {
		t.Errorf("idle tick changed timer: %d", got)
	}
}

func TestSubmitRegardlessOfValidity(t *testing.T) {
	m := runningMachine(t)
	// No draft meets its word-count band, yet submission must succeed.
	if m.AllTasksValid() {
		t.Fatal("empty drafts should not be valid")
	}
	m.Submit()
	if m.Phase() != model.PhaseSubmitted {
		t.Errorf("expected submitted, got %q", m.Phase())
	}
}

func TestValidityBoundary(t *testing.T) {
	// Task 1 band is 60-120.
	tests := []struct {
		wordCount int
		want      bool
	}{
		{59, false},
		{60, true},
		{120, true},
		{121, false},
	}

	for _, tt := range tests {
		m := runningMachine(t)
		m.EditTask(1, nWords(tt.wordCount))
		if got := m.TaskValid(1); got != tt.want {
			t.Errorf("TaskValid(1) with %d words = %v, want %v", tt.wordCount, got, tt.want)
		}
	}
}

func TestSetActiveTaskAnyPhase(t *testing.T) {
	m := NewMachine()
	m.SetActiveTask(3)
	if m.Snapshot().ActiveTask != 3 {
		t.Error("active task not set while idle")
	}
	m.Start("exam-1", nil)
	m.Submit()
	m.SetActiveTask(2)
	if m.Snapshot().ActiveTask != 2 {
		t.Error("active task not set after submit")
	}
	m.SetActiveTask(9)
	if m.Snapshot().ActiveTask != 2 {
		t.Error("out-of-range active task accepted")
	}
}

func TestSubjectOverridesPromptOnly(t *testing.T) {
	subject := &model.Subject{
		ID:          "s1",
		Title:       "Voyage",
		Task1Prompt: "Racontez votre dernier voyage.",
		Task2Prompt: "Demandez un remboursement à une agence.",
		Task3Prompt: "Plaignez-vous auprès d'une compagnie aérienne.",
	}
	m := NewMachine()
	m.Start("exam-1", subject)

	snap := m.Snapshot()
	if snap.Subject == nil || snap.Subject.ID != "s1" {
		t.Fatal("subject not attached to session")
	}

	c := model.ConstraintsFor(2, subject)
	if c.Prompt != subject.Task2Prompt {
		t.Errorf("prompt not overridden: %q", c.Prompt)
	}
	base := model.ConstraintsFor(2, nil)
	if c.MinWords != base.MinWords || c.MaxWords != base.MaxWords || c.Label != base.Label {
		t.Error("subject changed more than the prompt")
	}
}

func TestRegistryExpiryCallback(t *testing.T) {
	var calls atomic.Int32
	var gotID atomic.Value

	r := NewRegistry(func(examID string, drafts [model.TaskCount]model.TaskDraft) {
		calls.Add(1)
		gotID.Store(examID)
	})
	r.interval = time.Millisecond

	m := r.Start("exam-exp", nil)
	m.mu.Lock()
	m.secondsRemaining = 2
	m.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expiry callback never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Give the ticker room to misbehave, then check it fired exactly once.
	time.Sleep(20 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expiry callback fired %d times", n)
	}
	if gotID.Load() != "exam-exp" {
		t.Errorf("unexpected exam id: %v", gotID.Load())
	}
	if m.Phase() != model.PhaseSubmitted {
		t.Errorf("expected submitted after expiry, got %q", m.Phase())
	}
}

func TestRegistryGetAndRemove(t *testing.T) {
	r := NewRegistry(nil)
	r.interval = time.Hour // keep tickers quiet

	m := r.Start("exam-a", nil)
	if r.Get("exam-a") != m {
		t.Fatal("Get did not return started machine")
	}
	if r.Get("missing") != nil {
		t.Fatal("Get returned machine for unknown id")
	}

	r.Remove("exam-a")
	if r.Get("exam-a") != nil {
		t.Error("machine still present after Remove")
	}
	if m.Phase() != model.PhaseSubmitted {
		t.Error("Remove should close out the machine")
	}
}
