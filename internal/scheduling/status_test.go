package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/visit-service/internal/domain"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

func TestTransitions(t *testing.T) {
	legal := map[domain.AppointmentStatus][]domain.AppointmentStatus{
		domain.AppointmentStatusScheduled: {domain.AppointmentStatusConfirmed, domain.AppointmentStatusCanceled},
		domain.AppointmentStatusConfirmed: {domain.AppointmentStatusCompleted, domain.AppointmentStatusCanceled},
	}

	for _, from := range domain.AppointmentStatuses {
		for _, to := range domain.AppointmentStatuses {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)

			err := Transition(from, to)
			if want {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.Is(err, apperrors.CodeInvalidOperation), "%s -> %s", from, to)
			}
		}
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, domain.AppointmentStatusScheduled, InitialStatus)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusConfirmed, status)

	_, err = ParseStatus("POSTPONED")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}
