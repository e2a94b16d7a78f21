package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RejectsInvalidSchedule(t *testing.T) {
	sc, _ := newTestContext(t)

	_, err := NewScheduler(sc, "every sunday")
	assert.Error(t, err)

	// five fields are not enough with seconds enabled
	_, err = NewScheduler(sc, "0 3 * * *")
	assert.Error(t, err)
}

func TestNewScheduler_RegistersRetrainJob(t *testing.T) {
	sc, _ := newTestContext(t)

	s, err := NewScheduler(sc, "0 0 3 * * *")
	require.NoError(t, err)
	require.Len(t, s.Cron.Entries(), 1)

	s.Start()
	next := s.Cron.Entries()[0].Next
	assert.Equal(t, 3, next.Hour())
	assert.True(t, next.After(time.Now()))

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunNowTrainsModel(t *testing.T) {
	sc, _ := newTestContext(t)

	s, err := NewScheduler(sc, "@every 24h")
	require.NoError(t, err)

	s.RunNow()
	require.NotNil(t, sc.Session.Bundle())

	_, err = sc.Cache.Get(sc.Context, predictionsKey)
	assert.NoError(t, err)
}
