package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string]Cent{
		"1000.00": 100000,
		"100":     10000,
		"0.01":    1,
		"0":       0,
		"12.345":  1235, // rounds to nearest cent
		" 50.5 ":  5050,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "-5", "1,000"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	require.Equal(t, Dollar(12.34), Cent(1234).Dollar())
	require.Equal(t, Cent(1234), Dollar(12.34999).Cent()) // truncates
	require.Equal(t, Cent(-50), Dollar(-0.5).Cent())
}

func TestString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1234.56", Cent(123456).String())
	require.Equal(t, "-0.05", Cent(-5).String())
	require.Equal(t, "0.00", Cent(0).String())
	require.Equal(t, "90000.00", Cent(9000000).String())
}
