package manager

import (
	"fmt"

	"go.uber.org/zap"
)

// CreateCluster registers count sessions named clusterID-1..clusterID-N.
// On any failure the already-created members are removed again.
func (m *Manager) CreateCluster(clusterID string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("cluster size must be positive, got %d", count)
	}

	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		sid := fmt.Sprintf("%s-%d", clusterID, i)
		if _, err := m.Create(sid); err != nil {
			for _, prev := range ids {
				m.Remove(prev)
			}
			return nil, fmt.Errorf("failed to create cluster member %s: %w", sid, err)
		}
		ids = append(ids, sid)
	}

	m.log.Info("cluster created",
		zap.String("cluster_id", clusterID), zap.Int("size", count))
	return ids, nil
}

// ClusterIDs returns the registered member ids of a cluster.
func (m *Manager) ClusterIDs(clusterID string) ([]string, error) {
	return m.FindByPattern(clusterID + "-*")
}

// RemoveCluster terminates and unregisters every member of a cluster,
// returning how many were removed.
func (m *Manager) RemoveCluster(clusterID string) (int, error) {
	ids, err := m.ClusterIDs(clusterID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, sid := range ids {
		if m.Remove(sid) {
			count++
		}
	}
	return count, nil
}
