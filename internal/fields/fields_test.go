package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "empty is default", in: "", want: Default},
		{name: "default preset", in: "+default", want: Default},
		{name: "all preset", in: "+all", want: Names(Outputs)},
		{name: "list keeps order", in: "td, dd ,aot40", want: []string{"td", "dd", "aot40"}},
		{name: "duplicates dropped", in: "dd,dd,hr", want: []string{"dd", "hr"}},
		{name: "unknown preset", in: "+most", wantErr: true},
		{name: "unknown field", in: "dd,nope", wantErr: true},
		{name: "only commas", in: ",,", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection_ReturnsCopy(t *testing.T) {
	got, err := ParseSelection("+default")
	require.NoError(t, err)
	got[0] = "changed"
	assert.Equal(t, "dd", Default[0])
}

func TestParseInputs(t *testing.T) {
	got, err := ParseInputs("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInputs, got)

	got, err = ParseInputs("dd,hr,ts_c")
	require.NoError(t, err)
	assert.Equal(t, []string{"dd", "hr", "ts_c"}, got)

	_, err = ParseInputs("dd,aot40")
	require.Error(t, err)
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "Day of year", Header("dd"))
	assert.Equal(t, "Air temperature (C)", Header("ts_c"))
	assert.Equal(t, "custom", Header("custom"))
}
