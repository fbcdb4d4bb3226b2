package session

import (
	"log/slog"
	"sync"
	"time"

	"tcfwrite/internal/model"
)

// ExpireFunc is invoked exactly once when a running attempt's timer hits
// zero, with the drafts as they stood at expiry. It runs on the ticker
// goroutine, so implementations should hand long work elsewhere.
type ExpireFunc func(examID string, drafts [model.TaskCount]model.TaskDraft)

// Registry owns one Machine per active exam id and drives each running
// machine's countdown with a dedicated ticker goroutine. Sessions are
// independent; the registry lock only guards the map.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*Machine

	onExpire ExpireFunc
	interval time.Duration
}

// NewRegistry creates a registry ticking once per second.
func NewRegistry(onExpire ExpireFunc) *Registry {
	return &Registry{
		machines: make(map[string]*Machine),
		onExpire: onExpire,
		interval: time.Second,
	}
}

// Start creates and starts a machine for the exam and begins its
// countdown. An existing machine for the same id is replaced; the old
// ticker goroutine notices its machine left the running phase and exits.
func (r *Registry) Start(examID string, subject *model.Subject) *Machine {
	m := NewMachine()
	m.Start(examID, subject)

	r.mu.Lock()
	if old, ok := r.machines[examID]; ok {
		old.Submit()
	}
	r.machines[examID] = m
	r.mu.Unlock()

	go r.run(m)
	return m
}

// Get returns the machine for an exam id, or nil.
func (r *Registry) Get(examID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machines[examID]
}

// Remove drops the machine for an exam id. Its ticker goroutine exits on
// the next tick since the machine is no longer running.
func (r *Registry) Remove(examID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.machines[examID]; ok {
		m.Submit()
		delete(r.machines, examID)
	}
}

// run drives one machine's countdown until it leaves the running phase.
// The ticker fires close to once per interval; drift is tolerated.
func (r *Registry) run(m *Machine) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for range ticker.C {
		expired := m.Tick()
		if expired {
			slog.Info("exam timer expired, auto-submitting", "exam_id", m.ExamID())
			if r.onExpire != nil {
				r.onExpire(m.ExamID(), m.Drafts())
			}
			return
		}
		if m.Phase() != model.PhaseRunning {
			return
		}
	}
}
