package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

type sample struct {
	Kind   string `json:"type" validate:"required,nodekind"`
	Handle string `json:"targetHandle" validate:"handle"`
	Count  int    `json:"count" validate:"min=1,max=10"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   sample
		message string
	}{
		{"valid", sample{Kind: "imageGenerator", Handle: "ref4", Count: 2}, ""},
		{"missing kind", sample{Count: 1}, "type is required"},
		{"unknown kind", sample{Kind: "hologram", Count: 1}, "type is not a known node kind"},
		{"unknown handle", sample{Kind: "text", Handle: "ref9", Count: 1}, "targetHandle is not a known handle"},
		{"count too high", sample{Kind: "text", Count: 11}, "count must be at most 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
