package domain

import "fmt"

// NativeVolumeMax is the server's native volume at 100%.
const NativeVolumeMax = 65536

// ToNative converts a percentage into the server's native volume unit.
// The percentage is clamped to [0, 100] and the result is truncated toward zero,
// so ToNative(66) == 43253.
func ToNative(percent float64) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(percent / 100.0 * NativeVolumeMax)
}

// ValidatePercent returns ErrInvalidVolume for values outside [0, 100].
func ValidatePercent(percent float64) error {
	// NaN fails both comparisons, hence the negated form.
	if !(percent >= 0 && percent <= 100) {
		return fmt.Errorf("%w (got %v)", ErrInvalidVolume, percent)
	}
	return nil
}

// VolumeCommand renders the command line, without terminator, that sets the
// default device of class to native.
func VolumeCommand(class DeviceClass, native int) string {
	return fmt.Sprintf("%s %s %d", class.Verb(), class.Target(), native)
}
