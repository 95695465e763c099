package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidpendyala/marketmaker/internal/marketplace"
	"github.com/sidpendyala/marketmaker/pkg/logger"
	domain "github.com/sidpendyala/marketmaker/pkg/types"
)

func newTestScheduler(t *testing.T, st *fakeStore, market *fakeMarket) *Scheduler {
	t.Helper()
	codec := newTestCodec(t)
	agent := NewAgent(NewPipeline(market, nil, logger.Nop()), nil, codec, logger.Nop())
	scanner := NewScanner(st, codec, agent, logger.Nop())

	s, err := NewScheduler(scanner, st, time.Minute, time.Hour, 30, logger.Nop())
	require.NoError(t, err)
	return s
}

func addSearch(t *testing.T, st *fakeStore, query string, enabled bool, lastRun *time.Time) *domain.TrackedSearch {
	t.Helper()
	codec := newTestCodec(t)
	ciphertext, err := codec.Encrypt(query)
	require.NoError(t, err)

	ts := &domain.TrackedSearch{
		QueryCiphertext:  ciphertext,
		QueryFingerprint: codec.Fingerprint(query),
		MinDiscount:      0.20,
		FrequencyMinutes: 60,
		Enabled:          enabled,
		LastRunAt:        lastRun,
	}
	require.NoError(t, st.CreateTrackedSearch(context.Background(), ts))
	return ts
}

func TestScanAllDue_OnlyScansDueSearches(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	market := newFakeMarket()
	market.sold[testQuery] = soldAround100()

	recent := time.Now().Add(-time.Minute)
	due := addSearch(t, st, testQuery, true, nil)
	addSearch(t, st, "disabled search", false, nil)
	addSearch(t, st, "recently scanned", true, &recent)

	s := newTestScheduler(t, st, market)
	summaries, err := s.ScanAllDue(context.Background())
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, due.ID, summaries[0].TrackedSearchID)
	assert.Equal(t, domain.ScanStatusSuccess, summaries[0].Status)
}

func TestScanAllDue_IsolatesFailures(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	market := newFakeMarket()
	market.soldErr = marketplace.ErrUpstream

	addSearch(t, st, "first query", true, nil)
	addSearch(t, st, "second query", true, nil)

	s := newTestScheduler(t, st, market)
	summaries, err := s.ScanAllDue(context.Background())
	require.NoError(t, err, "one search's failure never fails the batch")

	require.Len(t, summaries, 2)
	for _, sum := range summaries {
		assert.Equal(t, domain.ScanStatusFailed, sum.Status)
		assert.NotEmpty(t, sum.Error)
	}
}

func TestScheduler_RegistersJobs(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, newFakeStore(), newFakeMarket())
	assert.Len(t, s.Entries(), 2)
}

func TestRunRetentionCleanup(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	s := newTestScheduler(t, st, newFakeMarket())

	require.NoError(t, s.RunRetentionCleanup(context.Background()))

	require.Len(t, st.deletedRunsBefore, 1)
	require.Len(t, st.deletedEventsBefore, 1)

	wantCutoff := time.Now().AddDate(0, 0, -30)
	assert.WithinDuration(t, wantCutoff, st.deletedRunsBefore[0], time.Minute)
	assert.WithinDuration(t, wantCutoff, st.deletedEventsBefore[0], time.Minute)
}
