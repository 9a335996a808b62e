package fingerprint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockguard/lockguard/internal/lockmanager"
	"github.com/lockguard/lockguard/internal/repository"
	"github.com/lockguard/lockguard/pkg/logger"
)

type submission struct {
	NSS   string `json:"nss"`
	CURP  string `json:"curp"`
	Extra map[string]int
}

func newGate(t *testing.T) (*Gate, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	manager := lockmanager.NewManager(store, logger.NewNop(), lockmanager.Options{})
	return NewGate(manager, "certificacion", logger.NewNop()), store
}

func TestCanonicalizeIsStable(t *testing.T) {
	a, err := Canonicalize(map[string]any{"b": 1, "a": "x", "c": []int{3, 1}})
	require.NoError(t, err)
	b, err := Canonicalize(map[string]any{"c": []int{3, 1}, "a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":[3,1]}`, string(a))
	assert.Equal(t, a, b)

	// Struct field order does not leak into the canonical form.
	s, err := Canonicalize(submission{NSS: "1", CURP: "C", Extra: map[string]int{"z": 1, "y": 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"Extra":{"y":2,"z":1},"curp":"C","nss":"1"}`, string(s))
}

func TestCanonicalizeKeepsLargeNumbers(t *testing.T) {
	out, err := Canonicalize(map[string]any{"n": int64(9007199254740993)})
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(out))
}

func TestKeyIsNamespaced(t *testing.T) {
	g, _ := newGate(t)
	key, canonical, err := g.Key(submission{NSS: "1"})
	require.NoError(t, err)
	assert.Regexp(t, `^certificacion:[0-9a-f]{64}$`, key)
	assert.Contains(t, string(canonical), `"nss":"1"`)

	other, _, err := g.Key(submission{NSS: "2"})
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestGuardProcessesAndReleases(t *testing.T) {
	g, store := newGate(t)

	result, outcome, err := Guard(context.Background(), g, submission{NSS: "1"}, func(ctx context.Context) (string, error) {
		assert.Equal(t, 1, store.Len())
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, Processed, outcome)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 0, store.Len())
}

func TestGuardReleasesOnError(t *testing.T) {
	g, store := newGate(t)
	boom := errors.New("downstream failed")

	_, outcome, err := Guard(context.Background(), g, submission{NSS: "1"}, func(ctx context.Context) (string, error) {
		return "", boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Processed, outcome)
	assert.Equal(t, 0, store.Len())
}

func TestGuardConcurrentIdenticalRequests(t *testing.T) {
	g, store := newGate(t)
	ctx := context.Background()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)

	var firstOutcome Outcome
	var firstErr error
	go func() {
		defer calls.Done()
		_, firstOutcome, firstErr = Guard(ctx, g, submission{NSS: "1", CURP: "C"}, func(ctx context.Context) (int, error) {
			close(entered)
			<-proceed
			return 1, nil
		})
	}()

	<-entered
	result, outcome, err := Guard(ctx, g, submission{CURP: "C", NSS: "1"}, func(ctx context.Context) (int, error) {
		t.Error("duplicate must not reach downstream")
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, outcome)
	assert.Zero(t, result)
	assert.Equal(t, 1, store.Len())

	close(proceed)
	calls.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, Processed, firstOutcome)
	assert.Equal(t, 0, store.Len())
}

func TestGuardDifferentRequestsBothProcessed(t *testing.T) {
	g, _ := newGate(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	barrier := make(chan struct{})
	var ready sync.WaitGroup
	ready.Add(2)
	for i, nss := range []string{"1", "2"} {
		wg.Add(1)
		go func(i int, nss string) {
			defer wg.Done()
			_, outcomes[i], _ = Guard(ctx, g, submission{NSS: nss}, func(ctx context.Context) (bool, error) {
				ready.Done()
				select {
				case <-barrier:
				case <-time.After(time.Second):
				}
				return true, nil
			})
		}(i, nss)
	}
	ready.Wait()
	close(barrier)
	wg.Wait()

	assert.Equal(t, []Outcome{Processed, Processed}, outcomes)
}

func TestGuardUnprotectedOnFingerprintFailure(t *testing.T) {
	g, store := newGate(t)

	called := false
	result, outcome, err := Guard(context.Background(), g, map[string]any{"fn": func() {}}, func(ctx context.Context) (string, error) {
		called = true
		assert.Equal(t, 0, store.Len())
		return "ran", nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, Unprotected, outcome)
	assert.Equal(t, "ran", result)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "processed", Processed.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "unprotected", Unprotected.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
