package shortcode

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_SkipsTakenCodes(t *testing.T) {
	gen := NewGenerator(WithSource(rand.NewPCG(1, 2)))
	taken := map[string]bool{}
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		if calls <= 5 {
			taken[code] = true
			return true, nil
		}
		return taken[code], nil
	}

	code, err := gen.Generate(context.Background(), exists)
	require.NoError(t, err)
	assert.False(t, taken[code])
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected rune %q", r)
	}
}

func TestGenerator_FallsThroughLengths(t *testing.T) {
	gen := NewGenerator()
	exists := func(ctx context.Context, code string) (bool, error) {
		return len(code) < 8, nil
	}

	code, err := gen.Generate(context.Background(), exists)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestGenerator_TimestampFallback(t *testing.T) {
	clock := func() time.Time { return time.Unix(1712345678, 0) }
	gen := NewGenerator(WithClock(clock))
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return !strings.HasPrefix(code, "url"), nil
	}

	code, err := gen.Generate(context.Background(), exists)
	require.NoError(t, err)
	assert.Equal(t, "url12345678", code)
	assert.Equal(t, len(DefaultLengths)*AttemptsPerLength+1, calls)
}

func TestGenerator_Exhausted(t *testing.T) {
	gen := NewGenerator()
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := gen.Generate(context.Background(), exists)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, len(DefaultLengths)*AttemptsPerLength+1, calls)
}

func TestGenerator_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	gen := NewGenerator()

	_, err := gen.Generate(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		alias string
		ok    bool
	}{
		{"ab", false},
		{"abc", true},
		{"valid-alias_1", true},
		{"twenty-chars-exactly", true},
		{"twenty-one-characters", false},
		{"has space", false},
		{"dots.not.ok", false},
		{"", false},
		{"not-found", false},
		{"Not-Found", false},
		{"not-found-2", true},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			err := ValidateAlias(tt.alias)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAlias)
			}
		})
	}
}
