package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeattr/domain/core"
)

func TestNew_RejectsDuplicateYear(t *testing.T) {
	_, err := New("dLdt", "m/d", []Point{{2000, 1}, {2001, 2}, {2000, 3}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateYear)
}

func TestAnnualSeries_SortedView(t *testing.T) {
	s, err := FromSlices("gmst", "K", []int{2002, 2000, 2001}, []float64{0.3, 0.1, 0.2})
	require.NoError(t, err)

	assert.Equal(t, []int{2000, 2001, 2002}, s.Years())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, s.Values())

	first, last, ok := s.Span()
	require.True(t, ok)
	assert.Equal(t, 2000, first)
	assert.Equal(t, 2002, last)
}

func TestAnnualSeries_Lookup(t *testing.T) {
	s, err := FromSlices("gmst", "K", []int{1900, 2020}, []float64{-0.3, 1.1})
	require.NoError(t, err)

	v, err := s.Lookup(2020)
	require.NoError(t, err)
	assert.Equal(t, 1.1, v)

	_, err = s.Lookup(1950)
	assert.True(t, core.IsInputAlignmentError(err))
}

func TestWindow(t *testing.T) {
	s, err := FromSlices("x", "", []int{1999, 2000, 2019, 2020}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	w := Window{Start: 2000, End: 2019}
	assert.Equal(t, []int{2000, 2019}, s.Window(w).Years())
	assert.Equal(t, []int{1999, 2000, 2019}, s.Window(Window{End: 2019}).Years())
	assert.Error(t, Window{Start: 2020, End: 2000}.Validate())
	assert.Equal(t, "2000..2019", w.String())
}
