package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerErrorsAreDistinct(t *testing.T) {
	require.False(t, errors.Is(ErrClosed, ErrNotFound))
}

func TestRequireErrorsAreDistinct(t *testing.T) {
	all := []error{ErrRequireNotFound, ErrRequireAmbiguous, ErrRequireAliasNotFound, ErrRequireCycle}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
