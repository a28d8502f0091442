package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrMonitorUnavailable is returned when a monitor has not been published or has the wrong type.
	ErrMonitorUnavailable = errors.New("monitor unavailable")
	ErrUnknownDialKey     = errors.New("unknown dial key")
)

// MonitorKey names an output channel of an entity.
type MonitorKey int

const (
	MonitorPosition       MonitorKey = iota // Position
	MonitorTargetCorridor                   // Int, corridor lane id
	MonitorSpeed                            // Float, m/s
	MonitorLength                           // Float, m
	MonitorHasStopSign                      // Bool
	MonitorOnRamp                           // Bool
)

func (k MonitorKey) String() string {
	switch k {
	case MonitorPosition:
		return "position"
	case MonitorTargetCorridor:
		return "target_corridor"
	case MonitorSpeed:
		return "speed"
	case MonitorLength:
		return "length"
	case MonitorHasStopSign:
		return "has_stop_sign"
	case MonitorOnRamp:
		return "on_ramp"
	default:
		return fmt.Sprintf("monitor(%d)", int(k))
	}
}

// DialKey names an input channel of an entity.
type DialKey int

const (
	DialIntersection DialKey = iota // Command
	DialTargetSpeed                 // Float, m/s
)

var dialNames = map[string]DialKey{
	"intersection": DialIntersection,
	"target_speed": DialTargetSpeed,
}

func (k DialKey) String() string {
	for name, key := range dialNames {
		if key == k {
			return name
		}
	}
	return fmt.Sprintf("dial(%d)", int(k))
}

// ParseDialKey maps a configuration name to its key.
func ParseDialKey(name string) (DialKey, error) {
	if k, ok := dialNames[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDialKey, name)
}

// Value is the closed set of monitor and dial payloads.
type Value interface {
	isValue()
}

type Int int32

type Float float64

type Bool bool

// Position on a lane
type Position struct {
	LaneID int32
	S      float64
}

// Command is the arbitration decision sent through DialIntersection.
type Command struct {
	Junction int32
	Stop     bool
	Distance float64 // hold offset along the corridor where the vehicle must stop
}

func (Int) isValue()      {}
func (Float) isValue()    {}
func (Bool) isValue()     {}
func (Position) isValue() {}
func (Command) isValue()  {}

// MonitorAs reads a monitor of type T.
func MonitorAs[T Value](e IEntity, key MonitorKey) (T, error) {
	var zero T
	v, ok := e.Monitor(key)
	if !ok {
		return zero, fmt.Errorf("%w: %s of %s", ErrMonitorUnavailable, key, e.Name())
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s of %s has type %T", ErrMonitorUnavailable, key, e.Name(), v)
	}
	return t, nil
}

// DialAs reads a dial of type T. ok is false if the dial is unset or of another type.
func DialAs[T Value](e IEntity, key DialKey) (T, bool) {
	var zero T
	v, ok := e.Dial(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
