package patternconfig

import (
	"bufio"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/larsks/pedald/internal/evdevcodes"
)

var (
	deviceLineRe  = regexp.MustCompile(`^dev:\s*(\S+)\s*\[([^\]]+)\](?:\s*\[shared\])?\s*$`)
	sharedFlagRe  = regexp.MustCompile(`\[\s*shared\s*\]`)
	typeCodeRe    = regexp.MustCompile(`^(\w+)/(\w+)=(-?\d+)$`)
	patternLineRe = regexp.MustCompile(`^([^:]+):(.*)$`)
	repeatSuffix  = regexp.MustCompile(`\s+repeat\s*$`)
	timingSuffix  = regexp.MustCompile(`^(.*?)(?:\s*<\s*([0-9.]+)\s*)?$`)
)

// Config holds the parsed pattern-file: devices, patterns, and the bits
// needed to detect and reload on modification.
type Config struct {
	ConfigFile string
	ModTime    time.Time
	Devices    []*DeviceConfig
	Patterns   []*Pattern

	nextButton int
	log        *log.Logger
}

// NewConfig creates an empty Config. logger may be nil, in which case a
// logger writing to stderr is used.
func NewConfig(logger *log.Logger) *Config {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Config{nextButton: 1, log: logger}
}

// Load parses configFile from scratch, replacing any previously loaded
// devices and patterns.
func (c *Config) Load(configFile string) error {
	if configFile == "" {
		return ErrEmptyPatternFile
	}

	info, err := os.Stat(configFile)
	if err != nil {
		return err
	}

	f, err := os.Open(configFile)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	c.ConfigFile = configFile
	c.ModTime = info.ModTime()
	c.Devices = nil
	c.Patterns = nil
	c.nextButton = 1

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.loadLine(line, lineNumber)
	}
	return scanner.Err()
}

// ReloadIfChanged re-stats ConfigFile; if its mtime differs from the last
// load, the instance rebuilds its device and pattern lists wholesale.
// Returns whether a reload happened.
func (c *Config) ReloadIfChanged() (bool, error) {
	if c.ConfigFile == "" {
		return false, nil
	}
	info, err := os.Stat(c.ConfigFile)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(c.ModTime) {
		return false, nil
	}
	if err := c.Load(c.ConfigFile); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Config) loadLine(line string, lineNumber int) {
	if c.tryLoadDevice(line) {
		return
	}
	c.tryLoadPattern(line, lineNumber)
}

func (c *Config) tryLoadDevice(line string) bool {
	m := deviceLineRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	devicePath := m[1]
	mappingsStr := m[2]
	shared := sharedFlagRe.MatchString(line)

	var mappings []EventMapping
	for _, part := range strings.Split(mappingsStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if tc := typeCodeRe.FindStringSubmatch(part); tc != nil {
			eventType, ok := resolveEventType(tc[1])
			if !ok {
				c.log.Warn("unknown event type in mapping", "device", devicePath, "mapping", part, "type", tc[1])
				continue
			}
			code, ok := resolveEventCode(eventType, tc[2])
			if !ok {
				c.log.Warn("unknown event code in mapping", "device", devicePath, "mapping", part, "code", tc[2])
				continue
			}
			value, err := strconv.Atoi(tc[3])
			if err != nil {
				c.log.Warn("invalid event value in mapping", "device", devicePath, "mapping", part)
				continue
			}
			mappings = append(mappings, EventMapping{
				EventType:   eventType,
				EventCode:   code,
				EventValue:  int32(value),
				Button:      Button(c.nextButton),
				AutoRelease: true,
			})
			c.nextButton++
			continue
		}

		code, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			c.log.Warn("invalid mapping token, skipping", "device", devicePath, "token", part)
			continue
		}
		button := Button(c.nextButton)
		mappings = append(mappings,
			EventMapping{EventType: evdevcodes.EV_KEY, EventCode: uint16(code), EventValue: 1, Button: button},
			EventMapping{EventType: evdevcodes.EV_KEY, EventCode: uint16(code), EventValue: 0, Button: button},
		)
		c.nextButton++
	}

	c.Devices = append(c.Devices, &DeviceConfig{Path: devicePath, Mappings: mappings, Shared: shared})
	return true
}

func resolveEventType(token string) (evdevcodes.EventType, bool) {
	if n, err := strconv.ParseUint(token, 10, 16); err == nil {
		return evdevcodes.EventType(n), true
	}
	return evdevcodes.GetEventTypeName(token)
}

func resolveEventCode(eventType evdevcodes.EventType, token string) (uint16, bool) {
	if n, err := strconv.ParseUint(token, 10, 16); err == nil {
		return uint16(n), true
	}
	return evdevcodes.GetCodeName(eventType, token)
}

func (c *Config) tryLoadPattern(line string, lineNumber int) {
	m := patternLineRe.FindStringSubmatch(line)
	if m == nil {
		c.log.Warn("unrecognized config line, skipping", "line", lineNumber, "text", line)
		return
	}

	patternStr := strings.TrimSpace(m[1])
	command := strings.TrimSpace(m[2])
	if idx := strings.IndexByte(command, '#'); idx >= 0 {
		command = strings.TrimSpace(command[:idx])
	}

	repeat := false
	if repeatSuffix.MatchString(patternStr) {
		repeat = true
		loc := repeatSuffix.FindStringIndex(patternStr)
		patternStr = strings.TrimSpace(patternStr[:loc[0]])
	}

	timingMatch := timingSuffix.FindStringSubmatch(patternStr)
	sequenceStr := strings.TrimSpace(timingMatch[1])
	timeConstraint := math.Inf(1)
	if timingMatch[2] != "" {
		v, err := strconv.ParseFloat(timingMatch[2], 64)
		if err != nil {
			c.log.Warn("invalid time constraint, skipping line", "line", lineNumber, "text", line)
			return
		}
		timeConstraint = v
	}

	var sequence []PatternElement
	for _, part := range strings.Split(sequenceStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case strings.HasSuffix(part, "v"):
			button, err := strconv.Atoi(part[:len(part)-1])
			if err != nil {
				c.log.Warn("invalid button in pattern, skipping line", "line", lineNumber, "text", line)
				return
			}
			sequence = append(sequence, PatternElement{Button: Button(button), Event: Down, MaxUse: UnlimitedUse})
		case strings.HasSuffix(part, "^"):
			button, err := strconv.Atoi(part[:len(part)-1])
			if err != nil {
				c.log.Warn("invalid button in pattern, skipping line", "line", lineNumber, "text", line)
				return
			}
			sequence = append(sequence, PatternElement{Button: Button(button), Event: Up, MaxUse: UnlimitedUse})
		default:
			button, err := strconv.Atoi(part)
			if err != nil {
				c.log.Warn("invalid button in pattern, skipping line", "line", lineNumber, "text", line)
				return
			}
			sequence = append(sequence,
				PatternElement{Button: Button(button), Event: Down, MaxUse: AtMost(0)},
				PatternElement{Button: Button(button), Event: Up, MaxUse: AtMost(0)},
			)
		}
	}

	if len(sequence) == 0 {
		c.log.Warn("pattern with empty sequence, skipping line", "line", lineNumber, "text", line)
		return
	}

	c.Patterns = append(c.Patterns, &Pattern{
		Sequence:       sequence,
		TimeConstraint: timeConstraint,
		Command:        command,
		LineNumber:     lineNumber,
		Repeat:         repeat,
	})
}

// DumpStructure logs the parsed devices and patterns at debug level, so
// the output appears only when the logger is at debug level (--debug).
func (c *Config) DumpStructure() {
	c.log.Debug("config devices", "count", len(c.Devices))
	for _, d := range c.Devices {
		c.log.Debug("device", "path", d.Path, "shared", d.Shared, "buttons", d.Buttons())
	}
	c.log.Debug("config patterns", "count", len(c.Patterns))
	for _, p := range c.Patterns {
		c.log.Debug("pattern", "line", p.LineNumber, "sequence", p.SequenceStr(), "repeat", p.Repeat, "command", p.Command)
	}
}

// DeclaredButtons returns the set of all buttons declared by any device.
func (c *Config) DeclaredButtons() map[Button]bool {
	declared := make(map[Button]bool)
	for _, d := range c.Devices {
		for _, b := range d.Buttons() {
			declared[b] = true
		}
	}
	return declared
}

// ValidatePatternButtons logs a warning for any pattern that references a
// button no device declares. This is a load-time warning, not an error:
// the pattern is kept and will simply never match.
func (c *Config) ValidatePatternButtons() {
	declared := c.DeclaredButtons()
	for _, p := range c.Patterns {
		for _, e := range p.Sequence {
			if !declared[e.Button] {
				c.log.Warn("pattern references undeclared button", "line", p.LineNumber, "button", e.Button)
				break
			}
		}
	}
}
