package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel summarises the recent error rate of an upstream.
type DegradationLevel string

const (
	LevelNormal    DegradationLevel = "normal"
	LevelDegraded  DegradationLevel = "degraded"
	LevelCritical  DegradationLevel = "critical"
	LevelEmergency DegradationLevel = "emergency"
)

// DegradationConfig holds error rate thresholds in [0,1].
type DegradationConfig struct {
	DegradedThreshold  float64
	CriticalThreshold  float64
	EmergencyThreshold float64
	// MinRequests keeps a single early failure from flagging a fresh service.
	MinRequests int64
}

func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		DegradedThreshold:  0.1,
		CriticalThreshold:  0.25,
		EmergencyThreshold: 0.5,
		MinRequests:        5,
	}
}

// ServiceHealth is a point-in-time view of one upstream.
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime *time.Time       `json:"last_error_time,omitempty"`
}

// DegradationManager tracks upstream outcomes (GitHub, the narrative provider)
// for the health endpoint.
type DegradationManager struct {
	config   DegradationConfig
	mu       sync.RWMutex
	services map[string]*ServiceHealth
}

func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:   config,
		services: make(map[string]*ServiceHealth),
	}
}

// Record notes the outcome of one upstream call. A nil err is a success.
func (dm *DegradationManager) Record(serviceName string, err error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	service, ok := dm.services[serviceName]
	if !ok {
		service = &ServiceHealth{ServiceName: serviceName, Level: LevelNormal}
		dm.services[serviceName] = service
	}

	service.TotalRequests++
	if err != nil {
		now := time.Now()
		service.ErrorCount++
		service.LastError = err.Error()
		service.LastErrorTime = &now
	}
	service.ErrorRate = float64(service.ErrorCount) / float64(service.TotalRequests)

	oldLevel := service.Level
	service.Level = dm.levelFor(service)
	if oldLevel != service.Level {
		slog.Warn("Service degradation level changed",
			"service", serviceName,
			"old_level", oldLevel,
			"new_level", service.Level,
			"error_rate", service.ErrorRate,
			"total_requests", service.TotalRequests)
	}
}

func (dm *DegradationManager) levelFor(service *ServiceHealth) DegradationLevel {
	if service.TotalRequests < dm.config.MinRequests {
		return LevelNormal
	}
	switch {
	case service.ErrorRate >= dm.config.EmergencyThreshold:
		return LevelEmergency
	case service.ErrorRate >= dm.config.CriticalThreshold:
		return LevelCritical
	case service.ErrorRate >= dm.config.DegradedThreshold:
		return LevelDegraded
	default:
		return LevelNormal
	}
}

// Snapshot returns copies of every tracked service.
func (dm *DegradationManager) Snapshot() map[string]ServiceHealth {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	out := make(map[string]ServiceHealth, len(dm.services))
	for name, service := range dm.services {
		out[name] = *service
	}
	return out
}

// Healthy reports whether no tracked service is in the emergency level.
func (dm *DegradationManager) Healthy() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	for _, service := range dm.services {
		if service.Level == LevelEmergency {
			return false
		}
	}
	return true
}
