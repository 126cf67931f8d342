// Package evdevcodes provides the raw Linux input-event type/code tables and
// the decoded input_event wire struct, so that both EV_KEY and non-key
// (EV_REL, EV_ABS, ...) mappings can be resolved symbolically in both
// directions.
package evdevcodes

import (
	"fmt"
	"syscall"
)

// InputEvent mirrors the Linux kernel's struct input_event.
type InputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// EventType is one of the EV_* constants from linux/input-event-codes.h.
type EventType uint16

const (
	EV_SYN       EventType = 0x00
	EV_KEY       EventType = 0x01
	EV_REL       EventType = 0x02
	EV_ABS       EventType = 0x03
	EV_MSC       EventType = 0x04
	EV_SW        EventType = 0x05
	EV_LED       EventType = 0x11
	EV_SND       EventType = 0x12
	EV_REP       EventType = 0x14
	EV_FF        EventType = 0x15
	EV_PWR       EventType = 0x16
	EV_FF_STATUS EventType = 0x17
)

var eventTypeNames = map[EventType]string{
	EV_SYN:       "EV_SYN",
	EV_KEY:       "EV_KEY",
	EV_REL:       "EV_REL",
	EV_ABS:       "EV_ABS",
	EV_MSC:       "EV_MSC",
	EV_SW:        "EV_SW",
	EV_LED:       "EV_LED",
	EV_SND:       "EV_SND",
	EV_REP:       "EV_REP",
	EV_FF:        "EV_FF",
	EV_PWR:       "EV_PWR",
	EV_FF_STATUS: "EV_FF_STATUS",
}

var eventTypesByName = func() map[string]EventType {
	m := make(map[string]EventType, len(eventTypeNames))
	for t, name := range eventTypeNames {
		m[name] = t
	}
	return m
}()

// GetEventTypeCode returns the symbolic name of an event type, or
// "UNKNOWN_N" if it isn't one of the known EV_* values.
func GetEventTypeCode(eventType EventType) string {
	if name, ok := eventTypeNames[eventType]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", eventType)
}

// GetEventTypeName resolves a symbolic EV_* name to its EventType.
func GetEventTypeName(name string) (EventType, bool) {
	t, ok := eventTypesByName[name]
	return t, ok
}

// Key codes (subset of linux/input-event-codes.h KEY_*/BTN_*).
var keyCodes = map[uint16]string{
	1: "ESC", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9",
	11: "0", 12: "MINUS", 13: "EQUAL", 14: "BACKSPACE", 15: "TAB",
	16: "Q", 17: "W", 18: "E", 19: "R", 20: "T", 21: "Y", 22: "U", 23: "I", 24: "O", 25: "P",
	26: "LEFTBRACE", 27: "RIGHTBRACE", 28: "ENTER", 29: "LEFTCTRL",
	30: "A", 31: "S", 32: "D", 33: "F", 34: "G", 35: "H", 36: "J", 37: "K", 38: "L",
	39: "SEMICOLON", 40: "APOSTROPHE", 41: "GRAVE", 42: "LEFTSHIFT", 43: "BACKSLASH",
	44: "Z", 45: "X", 46: "C", 47: "V", 48: "B", 49: "N", 50: "M",
	51: "COMMA", 52: "DOT", 53: "SLASH", 54: "RIGHTSHIFT", 55: "KPASTERISK",
	56: "LEFTALT", 57: "SPACE", 58: "CAPSLOCK",
	103: "UP", 105: "LEFT", 106: "RIGHT", 108: "DOWN",
	272: "BTN_LEFT", 273: "BTN_RIGHT", 274: "BTN_MIDDLE",
	288: "BTN_TRIGGER", 289: "BTN_THUMB", 290: "BTN_THUMB2",
	298: "BTN_BASE5", 299: "BTN_BASE6",
}

var keyCodesByName = func() map[string]uint16 {
	m := make(map[string]uint16, len(keyCodes))
	for c, name := range keyCodes {
		m[name] = c
	}
	return m
}()

// RelCodes maps EV_REL axis codes to their symbolic REL_* name.
var RelCodes = map[uint16]string{
	0: "X", 1: "Y", 2: "Z", 6: "HWHEEL", 8: "WHEEL", 9: "MISC", 10: "RESERVED",
	11: "WHEEL_HI_RES", 12: "HWHEEL_HI_RES",
}

var relCodesByName = func() map[string]uint16 {
	m := make(map[string]uint16, len(RelCodes))
	for c, name := range RelCodes {
		m["REL_"+name] = c
	}
	return m
}()

// AbsCodes maps EV_ABS axis codes to their symbolic ABS_* name.
var AbsCodes = map[uint16]string{
	0: "X", 1: "Y", 2: "Z", 3: "RX", 4: "RY", 5: "RZ",
	6: "THROTTLE", 7: "RUDDER", 8: "WHEEL", 9: "GAS", 10: "BRAKE",
	16: "HAT0X", 17: "HAT0Y", 18: "HAT1X", 19: "HAT1Y", 20: "HAT2X", 21: "HAT2Y", 22: "HAT3X", 23: "HAT3Y",
	24: "PRESSURE", 25: "DISTANCE", 26: "TILT_X", 27: "TILT_Y", 28: "TOOL_WIDTH", 32: "VOLUME",
	40: "MISC", 47: "MT_SLOT", 48: "MT_TOUCH_MAJOR", 49: "MT_TOUCH_MINOR",
	50: "MT_WIDTH_MAJOR", 51: "MT_WIDTH_MINOR", 52: "MT_ORIENTATION",
	53: "MT_POSITION_X", 54: "MT_POSITION_Y", 55: "MT_TOOL_TYPE", 56: "MT_BLOB_ID",
	57: "MT_TRACKING_ID", 58: "MT_PRESSURE", 59: "MT_DISTANCE", 60: "MT_TOOL_X", 61: "MT_TOOL_Y",
}

var absCodesByName = func() map[string]uint16 {
	m := make(map[string]uint16, len(AbsCodes))
	for c, name := range AbsCodes {
		m["ABS_"+name] = c
	}
	return m
}()

// GetCodeName resolves a symbolic code name (e.g. "REL_WHEEL", "KEY_ESC",
// or a bare "ESC" under EV_KEY) to its numeric code for the given event
// type. Used by the pattern-config DSL loader when parsing TYPE/CODE=VALUE
// mappings.
func GetCodeName(eventType EventType, name string) (uint16, bool) {
	switch eventType {
	case EV_KEY:
		if c, ok := keyCodesByName[name]; ok {
			return c, true
		}
		if c, ok := keyCodesByName[trimPrefix(name, "KEY_")]; ok {
			return c, true
		}
		if c, ok := keyCodesByName[trimPrefix(name, "BTN_")]; ok {
			return c, true
		}
		return 0, false
	case EV_REL:
		c, ok := relCodesByName[name]
		return c, ok
	case EV_ABS:
		c, ok := absCodesByName[name]
		return c, ok
	default:
		return 0, false
	}
}

func trimPrefix(s, prefix string) string {
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

const (
	KeyReleased = 0
	KeyPressed  = 1
	KeyRepeated = 2
)

// GetKeyStateName names the EV_KEY value for log messages.
func GetKeyStateName(value int32) string {
	switch value {
	case KeyReleased:
		return "RELEASED"
	case KeyPressed:
		return "PRESSED"
	case KeyRepeated:
		return "REPEATED"
	default:
		return fmt.Sprintf("UNKNOWN_%d", value)
	}
}
