package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climatempo-relay/internal/weather"
)

func TestSchedulerFiresJob(t *testing.T) {
	f := newFixture(t, region)
	f.fetcher.On("Fetch", mock.Anything, region).Return(weather.ReportRecord{}, weather.ErrFetch)

	s := New("* * * * * *", time.UTC, f.job, f.log)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, ok := f.job.LastRun()
		return ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsInvalidExpression(t *testing.T) {
	f := newFixture(t, region)

	s := New("not a cron", nil, f.job, f.log)
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestHasSecondsField(t *testing.T) {
	assert.False(t, hasSecondsField("* * * * *"))
	assert.True(t, hasSecondsField("*/5 * * * * *"))
	assert.False(t, hasSecondsField("@every 1m"))
}
