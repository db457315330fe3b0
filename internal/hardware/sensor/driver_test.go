package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestRead = errors.New("adc busy")

// TestNew_SelectsByName verifies explicit driver selection.
func TestNew_SelectsByName(t *testing.T) {
	t.Parallel()

	d, err := New(Options{Name: DriverSimulated, ChannelCount: 4})
	require.NoError(t, err)
	require.IsType(t, new(Simulated), d)
	require.Equal(t, 4, d.ChannelCount())

	_, err = New(Options{Name: "dsc", ChannelCount: 4})
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = New(Options{Name: DriverSimulated})
	require.Error(t, err)

	_, err = New(Options{Name: DriverIIO, ChannelCount: 2, DevicePath: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

// TestSimulated_ValuesAndFailures checks settable readings and forced failures.
func TestSimulated_ValuesAndFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSimulated(2, 5)

	s.Set(1, 12)

	v, err := s.Value(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 12.0, v, 1e-9)

	all, err := s.Values(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{5, 12}, all)

	_, err = s.Value(ctx, 2)
	require.ErrorIs(t, err, ErrChannelOutOfRange)

	s.Fail(0, errTestRead)

	_, err = s.Value(ctx, 0)
	require.ErrorIs(t, err, errTestRead)

	_, err = s.Values(ctx)
	require.ErrorIs(t, err, errTestRead)

	s.Fail(0, nil)

	_, err = s.Value(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, s.Reads(0), "Values does not count per-channel reads")
}

// TestIIO_ReadsSysfsFiles reads raw values from a fake device directory.
func TestIIO_ReadsSysfsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage0_raw"), []byte("100\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage1_raw"), []byte("250"), 0o600))

	d, err := New(Options{Name: DriverIIO, ChannelCount: 2, DevicePath: dir, Scale: 0.5})
	require.NoError(t, err)

	values, err := d.Values(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{50, 125}, values)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage1_raw"), []byte("garbage"), 0o600))

	_, err = d.Value(context.Background(), 1)
	require.Error(t, err)
}
