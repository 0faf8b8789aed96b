package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedInput = `"foo","bar","baz"
3,4,5
1,xyz,3
6,8,10
1,"xyz",3
1,,3
12,15.3,12.0e-3
`

var abc = []string{"a", "b", "c"}

func TestLoad_TrimSelectsFirstDataRow(t *testing.T) {
	ds, err := Load(strings.NewReader(mixedInput), abc, 6)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)

	row := ds.Rows[0]
	assert.Equal(t, 7, row.Line)
	assert.Equal(t, abc, row.Fields)
	assert.InDeltaSlice(t, []float64{12, 15.3, 0.012}, row.Values, 1e-12)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("header row not trimmed", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), abc, 0)
		var e *domain.NotEnoughTrimError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 1, e.Row)
	})

	t.Run("quoted string in data row", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), abc, 3)
		var e *domain.InvalidDataError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, domain.InvalidDataError{Row: 5, Col: 2}, *e)
	})

	t.Run("empty cell in first row", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), abc, 5)
		var e *domain.InvalidDataError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, domain.InvalidDataError{Row: 6, Col: 2}, *e)
	})

	t.Run("trim past end", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), abc, 7)
		var e *domain.NoDataError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 7, e.Trim)
	})

	t.Run("unquoted string", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), abc, 1)
		var e *domain.UnquotedStringError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 3, e.Row)
		assert.Equal(t, "xyz", e.Value)
	})

	t.Run("too few columns", func(t *testing.T) {
		_, err := Load(strings.NewReader(mixedInput), []string{"a", "b", "c", "d"}, 6)
		var e *domain.NotEnoughColumnsError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, domain.NotEnoughColumnsError{Row: 7, Got: 3, Expected: 4}, *e)
	})

	t.Run("short later row", func(t *testing.T) {
		_, err := Load(strings.NewReader("1,2,3\n4,5\n"), abc, 0)
		var e *domain.InvalidDataError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, domain.InvalidDataError{Row: 2, Col: 3}, *e)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Load(strings.NewReader(""), abc, 0)
		var e *domain.NoDataError
		require.ErrorAs(t, err, &e)
	})
}

func TestLoad_KeepsLeadingColumnsOnly(t *testing.T) {
	ds, err := Load(strings.NewReader("1,2,3,\"note\"\n4,5,6,\"other\"\n"), []string{"x", "y"}, 0)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []float64{1, 2}, ds.Rows[0].Values)
	assert.Equal(t, []float64{4, 5}, ds.Rows[1].Values)
}

func TestLoad_NaNCellsAreNumbers(t *testing.T) {
	ds, err := Load(strings.NewReader("1,nan,3\r\n"), abc, 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ds.Rows[0].Values[1]))
	assert.True(t, ds.Rows[0].HasMissing())
}

func TestTokenize(t *testing.T) {
	cells, err := tokenize(`"a ""q""",1.5,,"",-2`, 1)
	require.NoError(t, err)
	require.Len(t, cells, 5)

	assert.Equal(t, `a "q"`, cells[0].text)
	assert.True(t, cells[0].quoted)
	assert.InDelta(t, 1.5, cells[1].num, 0)
	assert.True(t, cells[2].isString())
	assert.False(t, cells[2].quoted)
	assert.True(t, cells[3].quoted)
	assert.InDelta(t, -2.0, cells[4].num, 0)

	trailing, err := tokenize("1,2,", 1)
	require.NoError(t, err)
	assert.Len(t, trailing, 3)

	_, err = tokenize(`"open,1`, 4)
	require.ErrorIs(t, err, errUnterminatedQuote)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(mixedInput), 0o600))

	ds, err := LoadFile(path, abc, 6)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 1)

	_, err = LoadFile(path, abc, 0)
	var e *domain.NotEnoughTrimError
	require.ErrorAs(t, err, &e)
	assert.Contains(t, err.Error(), path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), abc, 0)
	require.ErrorIs(t, err, os.ErrNotExist)
}
