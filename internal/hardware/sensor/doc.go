// Package sensor defines the sensor driver capability the monitor polls and
// ships two implementations: an in-memory simulated board and a Linux
// industrial-IO (sysfs) ADC reader. The implementation is chosen by explicit
// configuration through New.
package sensor
