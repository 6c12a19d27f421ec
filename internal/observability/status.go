package observability

import (
	"sync"
	"time"
)

type State string

const (
	StateIdle     State = "IDLE"
	StateThinking State = "THINKING"
	StateBrowsing State = "BROWSING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentState  State
	ActiveTask    string
	LastHeartbeat time.Time
	PagesVisited  int
	CacheHits     int
	ToolCalls     int
}

var globalStatus = &SystemStatus{
	CurrentState:  StateIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(state State, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentState = state
	globalStatus.ActiveTask = task
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (State, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentState, globalStatus.ActiveTask, globalStatus.LastHeartbeat
}

// Counters returns the pages-visited, cache-hit and tool-call totals.
func Counters() (pages, cacheHits, toolCalls int) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.PagesVisited, globalStatus.CacheHits, globalStatus.ToolCalls
}

func CountPageVisit() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.PagesVisited++
}

func CountCacheHit() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CacheHits++
}

func CountToolCall() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.ToolCalls++
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
