package app

import (
	"sync"

	"github.com/dkeye/Bridge/internal/domain"
)

// CallLog remembers outbound calls so the metadata API can answer for
// them after dispatch.
type CallLog struct {
	mu    sync.RWMutex
	calls map[domain.CallID]domain.Call
}

func NewCallLog() *CallLog {
	return &CallLog{calls: make(map[domain.CallID]domain.Call)}
}

func (l *CallLog) Add(c domain.Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[c.ID] = c
}

func (l *CallLog) Get(id domain.CallID) (domain.Call, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.calls[id]
	return c, ok
}
