package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Skip  int `validate:"gte=0"`
	Limit int `validate:"gte=0,lte=1000"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(listRequest{Skip: 0, Limit: 50})
		assert.NoError(t, err)
	})

	t.Run("out of range", func(t *testing.T) {
		err := ValidateStruct(listRequest{Skip: -1, Limit: 5000})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "Skip")
		assert.Contains(t, fields, "Limit")
	})
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("a2f1b9d0-3c44-4e7a-9a11-0c9d8f6e5b21"))
	assert.Error(t, ValidateUUID("not-a-uuid"))
	assert.Error(t, ValidateUUID(""))
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "monitors", false},
		{"underscored", "status_pages", false},
		{"empty", "", true},
		{"uppercase", "Monitors", true},
		{"sql injection attempt", "monitors; drop table users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
