package scheduler

import "go.trai.ch/rebuild/internal/core/domain"

// GetJobStatusMap returns a copy of the internal job status map.
// This is exported for testing purposes only.
func (s *Scheduler) GetJobStatusMap() map[domain.NodeID]domain.VertexStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusMap := make(map[domain.NodeID]domain.VertexStatus, len(s.jobStatus))
	for k, v := range s.jobStatus {
		statusMap[k] = v
	}
	return statusMap
}
