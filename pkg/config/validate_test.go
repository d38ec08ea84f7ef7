package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Millisecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}

func TestValidateNonNegativeDuration(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeDuration(0))
	assert.NoError(t, ValidateNonNegativeDuration(time.Second))
	assert.Error(t, ValidateNonNegativeDuration(-time.Nanosecond))
}

func TestValidateDurationRange(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		min     time.Duration
		max     time.Duration
		wantErr bool
	}{
		{name: "inside", d: 5 * time.Second, min: time.Second, max: 10 * time.Second},
		{name: "at min", d: time.Second, min: time.Second, max: 10 * time.Second},
		{name: "at max", d: 10 * time.Second, min: time.Second, max: 10 * time.Second},
		{name: "below", d: time.Millisecond, min: time.Second, max: 10 * time.Second, wantErr: true},
		{name: "above", d: time.Minute, min: time.Second, max: 10 * time.Second, wantErr: true},
		{name: "inverted range", d: time.Second, min: time.Minute, max: time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDurationRange(tt.d, tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(3, 1, 10))
	assert.NoError(t, ValidateIntRange(1, 1, 1))
	assert.Error(t, ValidateIntRange(0, 1, 10))
	assert.Error(t, ValidateIntRange(11, 1, 10))
	assert.Error(t, ValidateIntRange(5, 10, 1))
}

func TestValidateFloatRange(t *testing.T) {
	assert.NoError(t, ValidateFloatRange(2.0, 1.0, 10.0))
	assert.Error(t, ValidateFloatRange(0.5, 1.0, 10.0))
	assert.Error(t, ValidateFloatRange(10.5, 1.0, 10.0))
	assert.Error(t, ValidateFloatRange(1, 2, 1))
}
