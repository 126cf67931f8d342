package instance

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

const (
	idleTimeout   = time.Second
	activeTimeout = 100 * time.Millisecond
)

// Manager multiplexes every Instance's device fds through one select(2)
// loop: per cycle it polls for device reconnection, reloads any changed
// pattern file, waits for readability with a timeout that adapts to
// whether a repeat pattern is currently armed, dispatches whichever fds
// went readable, and then gives every instance a chance to re-fire its
// repeat pattern.
type Manager struct {
	Instances []*Instance
	log       *log.Logger
}

// NewManager creates a Manager over the given instances.
func NewManager(instances []*Instance, logger *log.Logger) *Manager {
	return &Manager{Instances: instances, log: logger}
}

// Run drives the event loop until ctx is cancelled. It always closes every
// instance's device sessions before returning, including on error.
func (m *Manager) Run(ctx context.Context) error {
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for _, inst := range m.Instances {
			inst.AttemptReconnections()
			if changed, err := inst.ReloadIfChanged(); err != nil {
				m.log.Warn("pattern file reload failed", "path", inst.ConfigFile, "error", err)
			} else if changed {
				m.log.Info("pattern file reloaded", "path", inst.ConfigFile)
			}
		}

		fds := make(map[int]fdOwner)
		for _, inst := range m.Instances {
			inst.CollectFDs(fds)
		}

		var readSet unix.FdSet
		fdZero(&readSet)
		maxFD := -1
		for fd := range fds {
			fdSet(&readSet, fd)
			if fd > maxFD {
				maxFD = fd
			}
		}

		timeout := m.selectTimeout()
		n, err := unix.Select(maxFD+1, &readSet, nil, nil, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		now := time.Now()
		if n > 0 {
			for fd, owner := range fds {
				if fdIsSet(&readSet, fd) {
					_ = owner.instance.ProcessFD(owner.session, now)
				}
			}
		}

		for _, inst := range m.Instances {
			inst.CheckAndFireRepeats(now)
		}
	}
}

// selectTimeout picks the wait: the idle 1.0s cadence when every
// instance's history is empty (reconnection polling only needs to be
// prompt, not instant; a fully idle pedal with devices merely plugged in
// must not busy-poll at the active cadence), repeatRate while any
// instance has a repeat pattern armed (so the next fire is never more
// than one tick late), else the ordinary 0.1s polling cadence.
func (m *Manager) selectTimeout() unix.Timeval {
	allIdle := true
	for _, inst := range m.Instances {
		if inst.HasArmedRepeat() {
			return unix.NsecToTimeval(inst.RepeatRate.Nanoseconds())
		}
		if !inst.HistoryEmpty() {
			allIdle = false
		}
	}
	if allIdle {
		return unix.NsecToTimeval(idleTimeout.Nanoseconds())
	}
	return unix.NsecToTimeval(activeTimeout.Nanoseconds())
}

func (m *Manager) closeAll() {
	for _, inst := range m.Instances {
		inst.Close()
	}
}

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << uint(fd%64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<uint(fd%64)) != 0
}
