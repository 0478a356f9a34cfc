package chrono

import (
	"ecourts-backend/internal/telemetry"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStandardCron(t *testing.T) {
	cron := NewStandardCron(&telemetry.Recorder{})
	t.Cleanup(func() {
		<-cron.Stop().Done()
	})

	require.NoError(t, cron.Cron("@hourly", func() {}))
	require.NoError(t, cron.Cron("30 3 * * *", func() {}))
	require.Error(t, cron.Cron("not a schedule", func() {}))
}
