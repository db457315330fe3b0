package sensor

import (
	"context"
	"errors"
	"fmt"
)

// Driver reads analog values from a fixed number of channels.
type Driver interface {
	// ChannelCount is the adapter's channel capacity.
	ChannelCount() int
	// Value reads one channel.
	Value(ctx context.Context, channel int) (float64, error)
	// Values reads every channel, indexed by channel number.
	Values(ctx context.Context) ([]float64, error)
}

const (
	// DriverSimulated selects the in-memory board.
	DriverSimulated = "simulated"
	// DriverIIO selects the sysfs industrial-IO reader.
	DriverIIO = "iio"
)

var (
	// ErrChannelOutOfRange is returned for channels beyond the capacity.
	ErrChannelOutOfRange = errors.New("channel out of range")
	// ErrUnknownDriver is returned by New for unsupported driver names.
	ErrUnknownDriver = errors.New("unknown sensor driver")
)

// Options selects and parameterises a driver.
type Options struct {
	// Name is DriverSimulated or DriverIIO.
	Name string
	// ChannelCount is the number of channels exposed.
	ChannelCount int
	// DevicePath is the iio device directory, e.g. /sys/bus/iio/devices/iio:device0.
	DevicePath string
	// Scale multiplies raw iio readings.
	Scale float64
	// Initial is the value every simulated channel starts with.
	Initial float64
}

// New builds the driver named in opts.
//
//nolint:ireturn // Callers are polymorphic over the driver.
func New(opts Options) (Driver, error) {
	if opts.ChannelCount <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", opts.ChannelCount)
	}

	switch opts.Name {
	case DriverSimulated, "":
		return NewSimulated(opts.ChannelCount, opts.Initial), nil
	case DriverIIO:
		return NewIIO(opts.DevicePath, opts.ChannelCount, opts.Scale)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Name)
	}
}

func checkChannel(channel, count int) error {
	if channel < 0 || channel >= count {
		return fmt.Errorf("%w: %d (capacity %d)", ErrChannelOutOfRange, channel, count)
	}

	return nil
}
