package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Endpoint addresses one of the audio server's listeners.
// The command channel and the status query use independent endpoints.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns host:port suitable for net.Dial.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Addr()
}

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidEndpoint)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, e.Port)
	}
	return nil
}

// DeviceClass selects the default playback (Sink) or capture (Source) device.
type DeviceClass int

const (
	Sink DeviceClass = iota
	Source
)

func (c DeviceClass) String() string {
	switch c {
	case Sink:
		return "sink"
	case Source:
		return "source"
	default:
		return "unknown"
	}
}

// Verb returns the command used to change the volume of this class.
func (c DeviceClass) Verb() string {
	if c == Source {
		return "set-source-volume"
	}
	return "set-sink-volume"
}

// Target returns the server-side alias of the default device of this class.
func (c DeviceClass) Target() string {
	if c == Source {
		return "@DEFAULT_SOURCE@"
	}
	return "@DEFAULT_SINK@"
}

// ParseDeviceClass accepts sink/output/out and source/input/in.
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sink", "output", "out":
		return Sink, nil
	case "source", "input", "in":
		return Source, nil
	default:
		return Sink, fmt.Errorf("%w: %q", ErrUnknownDeviceClass, s)
	}
}

// StatusSnapshot holds the default device volumes extracted from one status report.
// A class without a default device in the report stays at zero.
type StatusSnapshot struct {
	SinkVolumePercent   float64 `json:"sink"`
	SourceVolumePercent float64 `json:"source"`
}

// Percent returns the value for the given class.
func (s StatusSnapshot) Percent(c DeviceClass) float64 {
	if c == Source {
		return s.SourceVolumePercent
	}
	return s.SinkVolumePercent
}

// ConnState is the lifecycle state of the command channel.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateReady
	StateFailed
	StateCancelled
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition happens without a new Connect.
func (s ConnState) Terminal() bool {
	return s == StateFailed || s == StateCancelled
}

// StateChange is published on every command channel transition.
// Err is set for StateFailed.
type StateChange struct {
	State ConnState
	Err   error
	At    time.Time
}
