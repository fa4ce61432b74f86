package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	rec := Record{
		"type":    "A",
		"pop":     50.0,
		"name":    "O'Brien",
		"created": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"count":   int64(3),
	}

	tests := []struct {
		filter string
		want   bool
	}{
		{"(1=1)", true},
		{"(1=0)", false},
		{"type = 'A'", true},
		{"type = 'B'", false},
		{"type IN ('A', 'B')", true},
		{"type in ('C')", false},
		{"NOT (type IN ('B'))", true},
		{"not type = 'A'", false},
		{"pop >= 0 AND pop <= 100", true},
		{"(pop > 100 OR pop < 10)", false},
		{"pop <> 50", false},
		{"pop != 51", true},
		{"name = 'O''Brien'", true},
		{"created = date '2020-01-01'", true},
		{"created > date '2019-12-31 23:59:59'", true},
		{"count IN (1, 2, 3)", true},
		{"missing = 1", false},
		{"NOT (missing = 1)", false},
		{"(type = 'A' AND pop IN (50)) and (count > 2)", true},
		{"((1=1)) OR type = 'Z'", true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := Match(tt.filter, rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchMissingFieldIsUnknown(t *testing.T) {
	tests := []struct {
		filter string
		want   bool
	}{
		{"NOT (type IN ('track'))", false},
		{"NOT (type IN ('track')) and (lanes >= 1)", false},
		{"type IN ('track') OR lanes > 2", true},
		{"NOT (type = 'x' AND lanes > 5)", true},
		{"NOT (type = 'x' OR lanes > 5)", false},
		{"NOT NOT (type = 'x')", false},
		{"(1=1) and (lanes >= 1)", true},
	}
	for _, rec := range []Record{{"lanes": 3}, {"lanes": 3, "type": nil}} {
		for _, tt := range tests {
			got, err := Match(tt.filter, rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "%s with %v", tt.filter, rec)
		}
	}
}

func TestMatchStringNumbers(t *testing.T) {
	// numeric attributes stored as text still compare numerically
	ok, err := Match("pop > 9", Record{"pop": "10"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match("code = 'x'", Record{"code": 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchEpochDates(t *testing.T) {
	ms := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	ok, err := Match("d >= date '2021-06-01'", Record{"d": float64(ms)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "type =", "type IN ()", "(a = 1", "a = 1 AND"} {
		_, err := Parse(s)
		assert.Error(t, err, "%q", s)
	}
}

func TestFields(t *testing.T) {
	e, err := Parse("(kind = 'x' AND (pop > 1 OR NOT kind IN ('y'))) OR 1 = area")
	require.NoError(t, err)
	assert.Equal(t, []string{"kind", "pop", "area"}, e.Fields())
}

func TestKeywordPrefixedIdentifiers(t *testing.T) {
	ok, err := Match("orders = 2 AND android = 'y' AND index IN (1)", Record{
		"orders":  2,
		"android": "y",
		"index":   1,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}
