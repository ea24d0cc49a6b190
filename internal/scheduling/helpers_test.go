package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/repository"
)

func seed(t *testing.T, store *repository.MemoryAppointmentStore, id, custodiedID, visitorID string, ts time.Time, status domain.AppointmentStatus) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(tx repository.AppointmentTx) error {
		return tx.Create(context.Background(), &domain.Appointment{
			ID:                id,
			CustodiedPersonID: custodiedID,
			VisitorID:         visitorID,
			ScheduledAt:       ts,
			Status:            status,
		})
	})
	require.NoError(t, err)
}
