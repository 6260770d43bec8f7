package health

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Manager tracks readiness per dependency (store, transport, queue). The
// process reports ready only once every registered component is.
type Manager struct {
	mu         sync.RWMutex
	components map[string]bool
}

func NewManager(components ...string) *Manager {
	m := &Manager{components: make(map[string]bool, len(components))}
	for _, name := range components {
		m.components[name] = false
	}
	return m
}

func (m *Manager) SetComponent(name string, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = ready
}

func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ok := range m.components {
		if !ok {
			return false
		}
	}
	return true
}

func (m *Manager) snapshot() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.components))
	for name, ok := range m.components {
		out[name] = ok
	}
	return out
}

func LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessHandler reports the aggregate state plus each component, so an
// operator can tell whether the store or the transport is the one lagging.
func ReadinessHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		state := "ready"
		if !m.IsReady() {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "components": m.snapshot()})
	}
}
