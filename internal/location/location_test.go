package location_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/location"
)

var catalog = []string{
	"Odesa", "Kyiv", "Lviv", "Kharkiv", "Zakarpattia", "Dnipro",
	"Berdyansk", "Chernivtsi", "Carpathian Mountains", "Poltava",
}

func ptr(s string) *string { return &s }

func TestNormalize_AbsentCandidate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, location.Normalize(nil, catalog))
	assert.Nil(t, location.Normalize(ptr(""), catalog))
	assert.Nil(t, location.Normalize(ptr("   "), catalog))
}

func TestNormalize_ExactMatchAnyCase(t *testing.T) {
	t.Parallel()

	for i, loc := range catalog {
		// alternate casing patterns per location
		var b strings.Builder
		for j, r := range loc {
			if (i+j)%2 == 0 {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		got := location.Normalize(ptr(b.String()), catalog)
		require.NotNil(t, got, b.String())
		assert.Equal(t, loc, *got)
	}
}

func TestNormalize_FuzzyMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		candidate string
		want      string
	}{
		{"Lvov", "Lviv"},
		{"Kiev", "Kyiv"},
		{"odessa", "Odesa"},
		{"Karkiv", "Kharkiv"},
		{"carpathians", "Carpathian Mountains"},
		{"  Dnepro ", "Dnipro"},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			require.GreaterOrEqual(t, location.Similarity(strings.TrimSpace(tt.candidate), tt.want), location.Cutoff)
			got := location.Normalize(ptr(tt.candidate), catalog)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalize_LvovRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.75, location.Similarity("Lvov", "Lviv"), 1e-9)
}

func TestNormalize_BelowThresholdIsAbsent(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"Atlantis", "Paris", "xyz"} {
		_, score := location.Closest(c, catalog)
		require.Less(t, score, location.Cutoff, c)
		assert.Nil(t, location.Normalize(ptr(c), catalog), c)
	}
}

func TestNormalize_EmptyCatalog(t *testing.T) {
	t.Parallel()

	assert.Nil(t, location.Normalize(ptr("Lviv"), nil))
}

func TestNormalize_TiesResolveAlphabetically(t *testing.T) {
	t.Parallel()

	// "ab" scores the same against both
	got := location.Normalize(ptr("ab"), []string{"abd", "abc"})
	require.NotNil(t, got)
	assert.Equal(t, "abc", *got)
}

func TestNormalize_CaseDuplicatesCollapse(t *testing.T) {
	t.Parallel()

	got := location.Normalize(ptr("LVIV"), []string{"lviv", "Lviv"})
	require.NotNil(t, got)
	assert.Equal(t, "Lviv", *got)
}

func TestCachedSource_TTL(t *testing.T) {
	t.Parallel()
	var reads atomic.Int32
	locs := []string{"Kyiv"}
	src := location.SourceFunc(func(context.Context) ([]string, error) {
		reads.Add(1)
		return locs, nil
	})

	cs := location.NewCachedSource(src, time.Hour)
	for range 3 {
		got, err := cs.KnownLocations(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Kyiv"}, got)
	}
	assert.EqualValues(t, 1, reads.Load())

	cs.Invalidate()
	_, err := cs.KnownLocations(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, reads.Load())
}

func TestCachedSource_ZeroTTLReadsThrough(t *testing.T) {
	t.Parallel()
	var reads atomic.Int32
	src := location.SourceFunc(func(context.Context) ([]string, error) {
		reads.Add(1)
		return []string{"Lviv"}, nil
	})

	cs := location.NewCachedSource(src, 0)
	_, _ = cs.KnownLocations(context.Background())
	_, _ = cs.KnownLocations(context.Background())

	assert.EqualValues(t, 2, reads.Load())
}

func TestCachedSource_CollapsesConcurrentRefreshes(t *testing.T) {
	t.Parallel()
	var reads atomic.Int32
	release := make(chan struct{})
	src := location.SourceFunc(func(context.Context) ([]string, error) {
		reads.Add(1)
		<-release
		return []string{"Poltava"}, nil
	})
	cs := location.NewCachedSource(src, time.Minute)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cs.KnownLocations(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []string{"Poltava"}, got)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, reads.Load())
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	var reads atomic.Int32
	src := location.SourceFunc(func(context.Context) ([]string, error) {
		if reads.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return []string{"Odesa"}, nil
	})
	cs := location.NewCachedSource(src, time.Minute)

	_, err := cs.KnownLocations(context.Background())
	require.Error(t, err)

	got, err := cs.KnownLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Odesa"}, got)
}
