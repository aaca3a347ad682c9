package registry

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry is an in-process SessionRegistry for single-instance
// deployments. Instances sharing one MemoryRegistry compete for sessions.
type MemoryRegistry struct {
	instanceID string
	owners     *sync.Map // sessionID -> instanceID
}

// NewMemoryRegistry creates a registry owned by instanceID.
func NewMemoryRegistry(instanceID string) *MemoryRegistry {
	return &MemoryRegistry{instanceID: instanceID, owners: &sync.Map{}}
}

// Peer returns a registry for another instance sharing the same ownership table.
func (r *MemoryRegistry) Peer(instanceID string) *MemoryRegistry {
	return &MemoryRegistry{instanceID: instanceID, owners: r.owners}
}

func (r *MemoryRegistry) Claim(ctx context.Context, sessionID string) error {
	owner, _ := r.owners.LoadOrStore(sessionID, r.instanceID)
	if owner.(string) != r.instanceID {
		return fmt.Errorf("%w: %s held by %s", ErrSessionOwned, sessionID, owner)
	}
	return nil
}

func (r *MemoryRegistry) Release(ctx context.Context, sessionID string) error {
	r.owners.CompareAndDelete(sessionID, r.instanceID)
	return nil
}

func (r *MemoryRegistry) Owner(ctx context.Context, sessionID string) (string, error) {
	if owner, ok := r.owners.Load(sessionID); ok {
		return owner.(string), nil
	}
	return "", nil
}

func (r *MemoryRegistry) StartHeartbeat(ctx context.Context) error { return nil }

func (r *MemoryRegistry) StopHeartbeat() {}

func (r *MemoryRegistry) Close() error { return nil }

var _ SessionRegistry = (*MemoryRegistry)(nil)
