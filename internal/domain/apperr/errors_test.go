package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"conflict matches conflict", Conflict("claim %d is approved", 7), ErrConflict, true},
		{"conflict does not match forbidden", Conflict("claim %d is approved", 7), ErrForbidden, false},
		{"wrapped not found", fmt.Errorf("load claim: %w", NotFound("claim 3")), ErrNotFound, true},
		{"plain error", errors.New("boom"), ErrValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad decision %q", "maybe")))
	assert.Equal(t, KindDependency, KindOf(fmt.Errorf("rate: %w", Dependency(errors.New("timeout"), "currency gateway"))))
	assert.Equal(t, Kind(""), KindOf(errors.New("unclassified")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestDependency_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Dependency(cause, "currency gateway unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "currency gateway unreachable: dial tcp: i/o timeout", err.Error())
}
