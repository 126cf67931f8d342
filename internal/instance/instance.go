// Package instance implements the Instance and Manager/event-loop
// component: one Instance owns a single pattern-file's devices, shared
// history, and repeat timer; the manager multiplexes every instance's
// device fds through a single select(2) loop with reconnection polling,
// config-reload detection, and repeat-pattern re-firing.
package instance

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/larsks/pedald/internal/executor"
	"github.com/larsks/pedald/internal/history"
	"github.com/larsks/pedald/internal/matcher"
	"github.com/larsks/pedald/internal/patternconfig"
	"github.com/larsks/pedald/internal/session"
)

// Instance is everything driven by a single pattern-file: its devices, the
// history and pedal state they share, and the one repeat timer assigned
// per instance (not per device or per pattern).
type Instance struct {
	ConfigFile string
	RepeatRate time.Duration

	config   *patternconfig.Config
	sessions []*session.DeviceSession
	history  *history.History
	state    history.PedalState
	timer    history.RepeatTimer
	runner   executor.Runner
	log      *log.Logger
}

// New loads configFile and opens every device it declares. A device that
// fails to open (unplugged, permission denied) is logged and left for
// later reconnection attempts rather than failing the whole instance.
func New(configFile string, repeatRate time.Duration, runner executor.Runner, logger *log.Logger) (*Instance, error) {
	cfg := patternconfig.NewConfig(logger)
	if err := cfg.Load(configFile); err != nil {
		return nil, err
	}
	cfg.ValidatePatternButtons()
	cfg.DumpStructure()

	if len(cfg.Devices) == 0 {
		return nil, patternconfig.ErrNoDevicesConfigured
	}

	inst := &Instance{
		ConfigFile: configFile,
		RepeatRate: repeatRate,
		config:     cfg,
		runner:     runner,
		log:        logger,
	}
	inst.rebuildSessions()
	return inst, nil
}

func (i *Instance) rebuildSessions() {
	var buttons []patternconfig.Button
	for _, d := range i.config.Devices {
		buttons = append(buttons, d.Buttons()...)
	}

	i.sessions = make([]*session.DeviceSession, 0, len(i.config.Devices))
	for _, d := range i.config.Devices {
		s := session.NewDeviceSession(d, i.log)
		if err := s.Open(); err != nil {
			i.log.Warn("device unavailable, will retry", "path", d.Path, "error", err)
		}
		i.sessions = append(i.sessions, s)
	}

	i.history = history.New()
	i.state = history.NewPedalState(buttons)
	i.timer.Clear()
}

// ReloadIfChanged re-reads ConfigFile if its mtime has changed, closing and
// reopening every device session and discarding history/pedal state, since
// the new config may declare entirely different devices, buttons, or
// patterns.
func (i *Instance) ReloadIfChanged() (bool, error) {
	changed, err := i.config.ReloadIfChanged()
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	i.log.Info("pattern file changed, reloading", "path", i.ConfigFile)
	i.config.ValidatePatternButtons()
	i.config.DumpStructure()

	for _, s := range i.sessions {
		_ = s.Close()
	}
	i.rebuildSessions()
	return true, nil
}

// Close closes every device session. Failures are logged, not propagated:
// shutdown must not abort partway through because one device misbehaved.
func (i *Instance) Close() {
	for _, s := range i.sessions {
		if err := s.Close(); err != nil {
			i.log.Warn("error closing device", "path", s.Config.Path, "error", err)
		}
	}
}

// AttemptReconnections probes every currently-disconnected session for
// reappearance. Called once per event-loop cycle.
func (i *Instance) AttemptReconnections() {
	for _, s := range i.sessions {
		if !s.Connected() {
			s.AttemptReconnection()
		}
	}
}

// CollectFDs appends every connected session's fd (paired with the session
// that owns it) onto dst and returns the result, so the manager can build
// one select(2) set across every instance.
func (i *Instance) CollectFDs(dst map[int]fdOwner) map[int]fdOwner {
	for _, s := range i.sessions {
		if fd, ok := s.FD(); ok {
			dst[fd] = fdOwner{instance: i, session: s}
		}
	}
	return dst
}

// HasArmedRepeat reports whether this instance currently has a repeat
// pattern armed or firing, used by the manager to pick the select()
// timeout (the repeat-rate polling cadence instead of the idle wait).
func (i *Instance) HasArmedRepeat() bool {
	return i.timer.Armed()
}

// HistoryEmpty reports whether this instance has no pending button
// transitions at all, used by the manager to decide whether it can back
// off to the idle select() timeout.
func (i *Instance) HistoryEmpty() bool {
	return i.history == nil || len(i.history.Entries) == 0
}

// CheckAndFireRepeats re-evaluates the repeat matcher and, if the timer
// says it's time, re-executes every currently matching repeat pattern.
// Called once per event-loop cycle for every instance: the initial fire
// requires 2x RepeatRate since arming, every subsequent fire requires 1x
// RepeatRate since the last one.
func (i *Instance) CheckAndFireRepeats(now time.Time) {
	if !i.timer.Armed() {
		return
	}
	if !i.timer.ShouldFire(now, i.RepeatRate) {
		return
	}

	matches := i.currentRepeatMatches()
	if len(matches) == 0 {
		i.timer.Clear()
		return
	}

	for _, p := range matches {
		if err := i.runner.Run(p.Command); err != nil {
			i.log.Warn("repeat pattern command failed", "line", p.LineNumber, "command", p.Command, "error", err)
		} else {
			i.log.Info("repeat pattern fired", "line", p.LineNumber, "sequence", p.SequenceStr())
		}
	}
	i.timer.MarkFired(now)
}

// ProcessFD reads and dispatches one event from the given session, which
// must belong to this instance.
func (i *Instance) ProcessFD(s *session.DeviceSession, now time.Time) error {
	raw, err := s.ReadEvent()
	if err != nil {
		i.log.Warn("device read failed, disconnecting", "path", s.Config.Path, "error", err)
		_ = s.Close()
		return err
	}

	if _, err := s.ProcessEvent(raw, i.history, i.state, i.config.Patterns, i.runner, &i.timer, now); err != nil {
		i.log.Warn("event processing failed", "path", s.Config.Path, "error", err)
	}
	return nil
}

func (i *Instance) currentRepeatMatches() []*patternconfig.Pattern {
	return matcher.FindRepeatMatches(i.config.Patterns, i.history.Entries)
}

// fdOwner pairs a raw fd with the instance and session it belongs to, so
// the manager's select(2) loop can route a readable fd back to the right
// ProcessFD call.
type fdOwner struct {
	instance *Instance
	session  *session.DeviceSession
}
