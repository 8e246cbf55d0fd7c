package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionPolicyDefaults(t *testing.T) {
	holder, err := NewSubmissionPolicyHolder()
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, DefaultSubmissionPolicy(), p)
}

func TestSubmissionPolicyEnvOverrides(t *testing.T) {
	t.Setenv("SUBMITTER_MAX_RETRIES", "7")
	t.Setenv("SUBMITTER_BATCH_SIZE", "9")
	t.Setenv("SUBMITTER_SUBMIT_TIMEOUT", "45s")
	t.Setenv("SUBMITTER_STALE_THRESHOLD", "30m")

	holder, err := NewSubmissionPolicyHolder()
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, 7, p.MaxRetries)
	assert.Equal(t, 9, p.BatchSize)
	assert.Equal(t, 45*time.Second, p.SubmitTimeout)
	assert.Equal(t, 30*time.Minute, p.StaleThreshold)

	// untouched keys keep their defaults
	assert.Equal(t, time.Minute, p.RunInterval)
	assert.Equal(t, 4, p.Concurrency)
}

func TestSubmissionPolicyEnvValidation(t *testing.T) {
	t.Setenv("SUBMITTER_BATCH_SIZE", "2")
	t.Setenv("SUBMITTER_CONCURRENCY", "8")

	_, err := NewSubmissionPolicyHolder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}
