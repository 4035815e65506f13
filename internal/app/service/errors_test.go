package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("create link: %w", ErrAliasTaken), "AliasTaken"},
		{fmt.Errorf("validate: %w", ErrInvalidURL), "InvalidURL"},
		{storageError("get link", errors.New("conn reset")), "StorageError"},
		{fmt.Errorf("%w: utm_source is required", ErrCampaignValidation), "CampaignValidationError"},
		{errors.New("boom"), "Internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestStorageErrorKeepsCause(t *testing.T) {
	cause := errors.New("conn reset")
	err := storageError("append click", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "append click")
}
