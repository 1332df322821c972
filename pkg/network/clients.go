package network

import (
	"sync"
	"sync/atomic"

	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
)

// ConnectionManager hands out connection ids and tracks the live connections
// of a server.
type ConnectionManager struct {
	nextID          atomic.Uint64
	connections     map[messages.ConnectionID]*Connection
	connectionsLock sync.RWMutex
	wg              sync.WaitGroup
}

// NewConnectionManager creates a new ConnectionManager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[messages.ConnectionID]*Connection),
	}
}

// NextID returns a connection id that was never used by this manager.
func (cm *ConnectionManager) NextID() messages.ConnectionID {
	return messages.ConnectionID(cm.nextID.Add(1))
}

// Add registers a connection until its actor exits.
func (cm *ConnectionManager) Add(c *Connection) {
	cm.connectionsLock.Lock()
	defer cm.connectionsLock.Unlock()
	cm.connections[c.ID()] = c
	cm.wg.Add(1)
	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
}

// Remove unregisters a connection. Removing an unknown id is a no-op.
func (cm *ConnectionManager) Remove(id messages.ConnectionID) {
	cm.connectionsLock.Lock()
	defer cm.connectionsLock.Unlock()
	if _, ok := cm.connections[id]; !ok {
		return
	}
	delete(cm.connections, id)
	cm.wg.Done()
	metrics.ActiveConnections.Dec()
}

// Get returns the live connection with the given id.
func (cm *ConnectionManager) Get(id messages.ConnectionID) (*Connection, bool) {
	cm.connectionsLock.RLock()
	defer cm.connectionsLock.RUnlock()
	c, ok := cm.connections[id]
	return c, ok
}

// Len returns the number of live connections.
func (cm *ConnectionManager) Len() int {
	cm.connectionsLock.RLock()
	defer cm.connectionsLock.RUnlock()
	return len(cm.connections)
}

// CloseAll asks every live connection to close.
func (cm *ConnectionManager) CloseAll(reason error) {
	cm.connectionsLock.RLock()
	defer cm.connectionsLock.RUnlock()
	for _, c := range cm.connections {
		c.fail(reason)
	}
}

// Wait blocks until every registered connection was removed.
func (cm *ConnectionManager) Wait() {
	cm.wg.Wait()
}
