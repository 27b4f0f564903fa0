package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegradationManager_Levels(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig())

	dm.Record("github", errors.New("502"))
	assert.Equal(t, LevelNormal, dm.Snapshot()["github"].Level, "below MinRequests")

	for i := 0; i < 3; i++ {
		dm.Record("github", nil)
	}
	dm.Record("github", errors.New("502"))

	health := dm.Snapshot()["github"]
	assert.Equal(t, int64(5), health.TotalRequests)
	assert.Equal(t, int64(2), health.ErrorCount)
	assert.InDelta(t, 0.4, health.ErrorRate, 1e-9)
	assert.Equal(t, LevelCritical, health.Level)
	assert.Equal(t, "502", health.LastError)
	assert.True(t, dm.Healthy())

	for i := 0; i < 5; i++ {
		dm.Record("github", errors.New("down"))
	}
	assert.Equal(t, LevelEmergency, dm.Snapshot()["github"].Level)
	assert.False(t, dm.Healthy())
}
