package workflow

import "time"

// State is the processing loop state.
type State string

const (
	// StateIdle means no drain pass is running.
	StateIdle State = "idle"
	// StateDraining means a drain pass is running. CurrentTaskID is empty
	// during the pause between tasks.
	StateDraining State = "draining"
)

// Snapshot is an immutable view of the manager published after every state
// change.
type Snapshot struct {
	Running       bool
	State         State
	CurrentTaskID string
	LastTaskID    string
	LastError     string
	UpdatedAt     time.Time
}

// IsProcessing reports whether a task is currently marked in flight.
func (s Snapshot) IsProcessing() bool {
	return s.CurrentTaskID != ""
}

// Snapshot returns the latest published state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// CurrentTaskID returns the task being drained, or "".
func (m *Manager) CurrentTaskID() string {
	return m.Snapshot().CurrentTaskID
}

func (m *Manager) publish(update func(*Snapshot)) {
	m.mu.Lock()
	update(&m.snapshot)
	m.snapshot.UpdatedAt = m.now().UTC()
	m.mu.Unlock()
}

func (m *Manager) setCurrentTask(id string) {
	m.publish(func(s *Snapshot) {
		s.CurrentTaskID = id
		if id != "" {
			s.LastTaskID = id
		}
	})
}
