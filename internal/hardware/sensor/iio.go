package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultScale keeps raw readings untouched.
const defaultScale = 1.0

// IIO reads a Linux industrial-IO ADC through sysfs:
// <DevicePath>/in_voltage<N>_raw holds the raw reading of channel N.
type IIO struct {
	// devicePath is the iio device directory.
	devicePath string
	// channelCount is the number of channels exposed.
	channelCount int
	// scale multiplies every raw reading.
	scale float64
}

// NewIIO checks the device directory exists and returns a reader.
func NewIIO(devicePath string, channelCount int, scale float64) (*IIO, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("%w: iio device path is empty", ErrUnknownDriver)
	}

	info, err := os.Stat(devicePath)
	if err != nil {
		return nil, fmt.Errorf("stat iio device: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("iio device %s is not a directory", devicePath)
	}

	if scale == 0 {
		scale = defaultScale
	}

	return &IIO{
		devicePath:   filepath.Clean(devicePath),
		channelCount: channelCount,
		scale:        scale,
	}, nil
}

// ChannelCount returns the configured capacity.
func (d *IIO) ChannelCount() int {
	return d.channelCount
}

// Value reads and scales one channel.
func (d *IIO) Value(_ context.Context, channel int) (float64, error) {
	if err := checkChannel(channel, d.channelCount); err != nil {
		return 0, err
	}

	path := filepath.Join(d.devicePath, fmt.Sprintf("in_voltage%d_raw", channel))

	contents, err := os.ReadFile(path) //nolint:gosec // Path is built from configuration and a channel number.
	if err != nil {
		return 0, fmt.Errorf("read channel %d: %w", channel, err)
	}

	raw, err := strconv.ParseFloat(strings.TrimSpace(string(contents)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse channel %d: %w", channel, err)
	}

	return raw * d.scale, nil
}

// Values reads every channel in order.
func (d *IIO) Values(ctx context.Context) ([]float64, error) {
	values := make([]float64, 0, d.channelCount)

	for channel := range d.channelCount {
		value, err := d.Value(ctx, channel)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}
