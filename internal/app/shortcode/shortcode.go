// Package shortcode issues random short codes and validates caller-chosen aliases.
package shortcode

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	Alphabet           = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	AttemptsPerLength  = 100
	MinAliasLength     = 3
	MaxAliasLength     = 20
	fallbackPrefix     = "url"
	fallbackDigitCount = 8
)

var (
	ErrCodeSpaceExhausted = errors.New("code space exhausted")
	ErrInvalidAlias       = errors.New("invalid alias")

	aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// DefaultLengths are tried in order.
	DefaultLengths = []int{6, 7, 8}

	// Path segments served by the redirect router itself. Routing is case-insensitive.
	reservedAliases = []string{"not-found"}
)

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws uniformly random codes. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	lengths []int
	now     func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithLengths overrides the candidate lengths.
func WithLengths(lengths ...int) Option {
	return func(g *Generator) { g.lengths = append([]int(nil), lengths...) }
}

// WithSource seeds the generator, mainly for tests.
func WithSource(src rand.Source) Option {
	return func(g *Generator) { g.rng = rand.New(src) }
}

// WithClock replaces the clock used by the timestamp fallback.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		lengths: DefaultLengths,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the first drawn code exists reports as free. When every
// length runs out of attempts it falls back to a timestamp-derived code.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for _, length := range g.lengths {
		for range AttemptsPerLength {
			code := g.draw(length)
			taken, err := exists(ctx, code)
			if err != nil {
				return "", err
			}
			if !taken {
				return code, nil
			}
		}
	}

	code := g.fallback()
	taken, err := exists(ctx, code)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrCodeSpaceExhausted
	}
	return code, nil
}

func (g *Generator) draw(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[g.rng.IntN(len(Alphabet))]
	}
	return string(b)
}

func (g *Generator) fallback() string {
	ts := fmt.Sprintf("%0*d", fallbackDigitCount, g.now().Unix())
	return fallbackPrefix + ts[len(ts)-fallbackDigitCount:]
}

// ValidateAlias checks length and character set of a custom alias.
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidAlias, MinAliasLength, MaxAliasLength)
	}
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: only letters, numbers, hyphens and underscores are allowed", ErrInvalidAlias)
	}
	for _, reserved := range reservedAliases {
		if strings.EqualFold(alias, reserved) {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, alias)
		}
	}
	return nil
}
