package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (j namedJob) Name() string            { return string(j) }
func (namedJob) Run(context.Context) error { return nil }

func names(jobs []Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	registry := NewRegistry(namedJob("payment-reconcile"), nil)
	registry.Register(namedJob("ticket-autoclose"))

	jobs := registry.Jobs()
	require.Equal(t, []string{"payment-reconcile", "ticket-autoclose"}, names(jobs))

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must return a copy")
}

func TestRegistryDueHonoursCadence(t *testing.T) {
	registry := NewRegistry(namedJob("payment-reconcile"))
	registry.RegisterEvery(namedJob("wallet-audit"), 24*time.Hour)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"payment-reconcile", "wallet-audit"}, names(registry.Due(start)))
	assert.Equal(t, []string{"payment-reconcile"}, names(registry.Due(start.Add(time.Hour))))
	assert.Equal(t, []string{"payment-reconcile"}, names(registry.Due(start.Add(23*time.Hour+59*time.Minute))))
	assert.Equal(t, []string{"payment-reconcile", "wallet-audit"}, names(registry.Due(start.Add(24*time.Hour))))
}
