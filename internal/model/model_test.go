package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Run", &Run{}, "runs"},
		{"VehicleFrame", &VehicleFrame{}, "vehicle_frames"},
		{"LightFrame", &LightFrame{}, "light_frames"},
		{"RunPerformance", &RunPerformance{}, "run_performance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsAreRegistered(t *testing.T) {
	assert.Len(t, DatabaseModels, 4)
}
