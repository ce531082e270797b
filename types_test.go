package storefront_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityName(t *testing.T) {
	tests := []struct {
		name     string
		identity *storefront.Identity
		expected string
	}{
		{"Nil identity", nil, ""},
		{"Display name", &storefront.Identity{DisplayName: "Ana", Email: "ana@example.com"}, "Ana"},
		{
			"Full name metadata",
			&storefront.Identity{Email: "ana@example.com", Metadata: storefront.Metadata{"full_name": "Ana Li"}},
			"Ana Li",
		},
		{
			"First and last name",
			&storefront.Identity{Email: "ana@example.com", Metadata: storefront.Metadata{"first_name": "Ana", "last_name": "Li"}},
			"Ana Li",
		},
		{
			"First name only",
			&storefront.Identity{Email: "ana@example.com", Metadata: storefront.Metadata{"first_name": "Ana"}},
			"Ana",
		},
		{"Email fallback", &storefront.Identity{Email: "ana@example.com"}, "ana@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.identity.Name())
		})
	}
}

func TestMetadataIgnoresNonStrings(t *testing.T) {
	m := storefront.Metadata{"first_name": 12}
	assert.Empty(t, m.FirstName())

	var empty storefront.Metadata
	assert.Empty(t, empty.FullName())
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	var nilSession *storefront.Session
	assert.False(t, nilSession.ExpiresWithin(now, time.Minute))
	assert.Nil(t, nilSession.CurrentIdentity())

	s := &storefront.Session{}
	assert.False(t, s.ExpiresWithin(now, time.Minute), "zero expiry never expires")

	s.ExpiresAt = now.Add(45 * time.Second)
	assert.True(t, s.ExpiresWithin(now, time.Minute))
	assert.False(t, s.ExpiresWithin(now, 30*time.Second))

	s.ExpiresAt = now.Add(time.Minute)
	assert.True(t, s.ExpiresWithin(now, time.Minute), "the margin boundary counts as expiring")
}

type recordingLogger struct {
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(msg string, args ...any) {}
func (r *recordingLogger) Warn(msg string, args ...any)  {}
func (r *recordingLogger) Error(msg string, args ...any) {}
func (r *recordingLogger) Info(msg string, args ...any) {
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func TestLogActivitySink(t *testing.T) {
	logger := &recordingLogger{}
	sink := storefront.LogActivitySink(logger)

	err := sink.Record(context.Background(), storefront.ActivityEvent{
		EventType: storefront.ActivityEventSignInSuccess,
		UserID:    "user-1",
		Email:     "ana@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"activity"}, logger.msgs)
	assert.Contains(t, logger.args[0], string(storefront.ActivityEventSignInSuccess))
	assert.Contains(t, logger.args[0], "user-1")
}

func TestNormalizeActivitySink(t *testing.T) {
	sink := storefront.NormalizeActivitySink(nil)
	assert.NoError(t, sink.Record(context.Background(), storefront.ActivityEvent{}))

	var fn storefront.ActivitySinkFunc
	assert.NoError(t, fn.Record(context.Background(), storefront.ActivityEvent{}))
}

func TestNewLogger(t *testing.T) {
	logger, zl, err := storefront.NewLogger("debug", true)
	require.NoError(t, err)
	require.NotNil(t, zl)
	assert.NotPanics(t, func() { logger.Debug("hello", "key", "value") })

	_, _, err = storefront.NewLogger("loud", false)
	assert.Error(t, err)

	assert.NotNil(t, storefront.NormalizeLogger(nil))
}
