package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type listProvider struct {
	name  string
	terms []string
	err   error
	calls int
}

func (p *listProvider) Name() string { return p.name }

func (p *listProvider) Terms(context.Context) ([]string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]string(nil), p.terms...), nil
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %03d", prefix, i)
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSource_NoRepeatWithinWindow(t *testing.T) {
	src := NewSource(Config{Logger: quiet()}, NewCorpus(nil, WithCorpusSeed(7)))
	var got []string
	for range 300 {
		term, err := src.Next(context.Background())
		require.NoError(t, err)
		got = append(got, normalize(term))
	}
	for i := range got {
		for j := max(0, i-MinWindow); j < i; j++ {
			if got[i] == got[j] {
				t.Fatalf("term %q at %d repeats term at %d", got[i], i, j)
			}
		}
	}
}

func TestSource_WindowRaisedToMinimum(t *testing.T) {
	src := NewSource(Config{Window: 3})
	require.Equal(t, MinWindow, src.cfg.Window)
}

func TestSource_CaseAndSpaceVariantsAreRepeats(t *testing.T) {
	p := &listProvider{name: "a", terms: []string{"Solar  Eclipse", "solar eclipse", "SOLAR ECLIPSE "}}
	src := NewSource(Config{Logger: quiet()}, p)

	term, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Solar Eclipse", term)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
}

func TestSource_FallsBackOnProviderError(t *testing.T) {
	bad := &listProvider{name: "trends", err: errors.New("dial tcp: refused")}
	good := &listProvider{name: "corpus", terms: []string{"honey bees"}}
	src := NewSource(Config{Logger: quiet()}, bad, good)

	term, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "honey bees", term)
	require.Equal(t, "corpus", src.Provider())
	require.Equal(t, 1, bad.calls)
}

func TestSource_ExhaustedWhenAllStale(t *testing.T) {
	a := &listProvider{name: "a", terms: []string{"x"}}
	b := &listProvider{name: "b", terms: []string{"x"}}
	src := NewSource(Config{Logger: quiet()}, a, b)

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
}

func TestSource_NoProviders(t *testing.T) {
	_, err := NewSource(Config{}).Next(context.Background())
	require.ErrorIs(t, err, ErrExhausted)
}

func TestSource_ContextErrorIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &listProvider{name: "a", err: context.Canceled}
	_, err := NewSource(Config{Logger: quiet()}, p).Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSource_VarySwitchesProvider(t *testing.T) {
	a := &listProvider{name: "a", terms: numbered("alpha", 5)}
	b := &listProvider{name: "b", terms: numbered("beta", 5)}
	src := NewSource(Config{Logger: quiet()}, a, b)

	term, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alpha 000", term)

	src.Vary()
	term, err = src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "beta 000", term)
}

func TestSource_ResetForgetsHistory(t *testing.T) {
	p := &listProvider{name: "a", terms: []string{"tide tables"}}
	src := NewSource(Config{Logger: quiet()}, p)

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, ErrExhausted)

	src.Reset()
	term, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tide tables", term)
}

func TestSource_FreshSourcesAreIndependent(t *testing.T) {
	p := &listProvider{name: "a", terms: []string{"tide tables"}}
	for range 2 {
		term, err := NewSource(Config{Logger: quiet()}, p).Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, "tide tables", term)
	}
}

func TestSource_SimilarityRejectsNearDuplicates(t *testing.T) {
	p := &listProvider{name: "a", terms: []string{"northern lights", "northern light", "volcano eruption"}}
	src := NewSource(Config{Similarity: 0.95, Logger: quiet()}, p)

	var got []string
	for range 2 {
		term, err := src.Next(context.Background())
		require.NoError(t, err)
		got = append(got, term)
	}
	require.Equal(t, []string{"northern lights", "volcano eruption"}, got)
}

func TestSource_String(t *testing.T) {
	src := NewSource(Config{}, &listProvider{name: "trends"}, &listProvider{name: "corpus"})
	require.Equal(t, "query.Source{providers: trends,corpus, window: 20}", src.String())
}
