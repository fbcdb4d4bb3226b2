// Package session holds the in-memory state machine for a running exam
// attempt: phase transitions, the countdown, the three task drafts and
// the submit/lock protocol's client-side half.
package session

import (
	"sync"
	"time"

	"tcfwrite/internal/model"
	"tcfwrite/internal/words"
)

// Machine owns the authoritative state of one exam attempt. A single
// logical writer drives it, but HTTP handlers and the ticker goroutine
// reach it concurrently, so every operation takes the mutex.
//
// Invalid transitions are silent no-ops rather than errors: once the
// session leaves the running phase, edit and tick calls have zero
// effect no matter how often a stale or hostile client fires them.
type Machine struct {
	mu sync.Mutex

	examID           string
	subject          *model.Subject
	phase            model.ExamPhase
	secondsRemaining int
	startedAt        time.Time
	activeTask       int
	tasks            [model.TaskCount]model.TaskDraft
}

// Snapshot is a copy of the machine state safe to hand to renderers.
type Snapshot struct {
	ExamID           string                           `json:"exam_id,omitempty"`
	Phase            model.ExamPhase                  `json:"phase"`
	SecondsRemaining int                              `json:"seconds_remaining"`
	Clock            string                           `json:"clock"`
	ActiveTask       int                              `json:"active_task"`
	Subject          *model.Subject                   `json:"subject,omitempty"`
	Tasks            [model.TaskCount]model.TaskDraft `json:"tasks"`
}

// NewMachine returns a machine in the idle phase with empty drafts.
func NewMachine() *Machine {
	m := &Machine{}
	m.resetLocked()
	return m
}

func (m *Machine) resetLocked() {
	m.examID = ""
	m.subject = nil
	m.phase = model.PhaseIdle
	m.secondsRemaining = model.ExamDurationSeconds
	m.startedAt = time.Time{}
	m.activeTask = 1
	for i := range m.tasks {
		m.tasks[i] = model.TaskDraft{TaskNumber: i + 1}
	}
}

// Start begins a new attempt. Valid only from idle; otherwise a no-op.
// All drafts are cleared and the timer is reset to the full duration.
func (m *Machine) Start(examID string, subject *model.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != model.PhaseIdle {
		return
	}
	m.resetLocked()
	m.examID = examID
	m.subject = subject
	m.startedAt = time.Now()
	m.phase = model.PhaseRunning
}

// EditTask replaces the content of one draft and recomputes its word
// count atomically. Ignored unless the session is running.
func (m *Machine) EditTask(taskNumber int, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != model.PhaseRunning {
		return
	}
	if taskNumber < 1 || taskNumber > model.TaskCount {
		return
	}
	m.tasks[taskNumber-1].Content = content
	m.tasks[taskNumber-1].WordCount = words.Count(content)
}

// SetActiveTask moves the UI focus pointer. Always valid.
func (m *Machine) SetActiveTask(taskNumber int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if taskNumber < 1 || taskNumber > model.TaskCount {
		return
	}
	m.activeTask = taskNumber
}

// Tick decrements the countdown by one second. When the timer would hit
// zero the machine clamps to zero and auto-submits; the returned flag is
// true only on that transition, so repeated ticks after expiry are
// idempotent no-ops.
func (m *Machine) Tick() (expired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != model.PhaseRunning {
		return false
	}
	if m.secondsRemaining <= 1 {
		m.secondsRemaining = 0
		m.phase = model.PhaseSubmitted
		return true
	}
	m.secondsRemaining--
	return false
}

// Submit is the explicit user-triggered equivalent of the timeout path.
// Valid only while running.
func (m *Machine) Submit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != model.PhaseRunning {
		return
	}
	m.phase = model.PhaseSubmitted
}

// MarkResults moves a submitted session to the results phase.
func (m *Machine) MarkResults() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != model.PhaseSubmitted {
		return
	}
	m.phase = model.PhaseResults
}

// Reset returns to idle from any state, clearing the exam id, subject,
// drafts and timer. A fresh attempt needs a fresh exam id.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Phase returns the current phase.
func (m *Machine) Phase() model.ExamPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// ExamID returns the attempt's persisted identifier ("" while idle).
func (m *Machine) ExamID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.examID
}

// Drafts returns a copy of the three task drafts.
func (m *Machine) Drafts() [model.TaskCount]model.TaskDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks
}

// Snapshot returns a copy of the whole machine state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ExamID:           m.examID,
		Phase:            m.phase,
		SecondsRemaining: m.secondsRemaining,
		Clock:            words.FormatClock(m.secondsRemaining),
		ActiveTask:       m.activeTask,
		Subject:          m.subject,
		Tasks:            m.tasks,
	}
}

// TaskValid reports whether a draft's word count falls inside its band.
func (m *Machine) TaskValid(taskNumber int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := model.ConstraintsFor(taskNumber, m.subject)
	wc := m.tasks[taskNumber-1].WordCount
	return wc >= c.MinWords && wc <= c.MaxWords
}

// AllTasksValid reports whether every draft is inside its band. Validity
// never blocks submission; it only drives warnings.
func (m *Machine) AllTasksValid() bool {
	for n := 1; n <= model.TaskCount; n++ {
		if !m.TaskValid(n) {
			return false
		}
	}
	return true
}
