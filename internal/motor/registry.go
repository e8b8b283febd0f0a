package motor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPassInterval is the cadence of the slew pass.
const DefaultPassInterval = 20 * time.Millisecond

var (
	// ErrUnknownChannel is returned for ids outside [0, NumChannels) or
	// channels that were never registered.
	ErrUnknownChannel = errors.New("motor: unknown channel")

	// ErrInvalidSlew is returned when a slew rate is not positive.
	ErrInvalidSlew = errors.New("motor: slew rate must be positive")
)

// Actuator receives hardware power commands. Command is called with a channel
// lock held, so implementations must not block or call back into the registry.
type Actuator interface {
	Command(channel, power int)
}

type slot struct {
	mu sync.Mutex
	ch channel
}

// Registry owns the actuator channels. Producers set requested power from
// any goroutine; Pass moves each channel's applied power toward its request.
type Registry struct {
	act    Actuator
	logger *slog.Logger
	slots  [NumChannels]slot
}

func NewRegistry(act Actuator, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{act: act, logger: logger}
}

func (r *Registry) lookup(id int) (*slot, error) {
	if id < 0 || id >= NumChannels {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return &r.slots[id], nil
}

// with runs fn on a registered channel under its lock.
func (r *Registry) with(id int, fn func(c *channel)) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ch.registered {
		return fmt.Errorf("%w: %d not registered", ErrUnknownChannel, id)
	}
	fn(&s.ch)
	return nil
}

// Register adds a channel at rest with the given slew rate and marks it
// active. Registering an existing id re-initializes it.
func (r *Registry) Register(id int, slew float64) error {
	if slew <= 0 {
		return ErrInvalidSlew
	}
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ch = channel{registered: true, slew: slew, active: true}
	s.mu.Unlock()

	r.logger.Debug("channel registered", "channel", id, "slew", slew)
	return nil
}

// SetPower sets the requested power, clamped to the actuator range.
func (r *Registry) SetPower(id, power int) error {
	return r.with(id, func(c *channel) {
		c.requested = clampInt(power)
	})
}

// Power returns the requested power.
func (r *Registry) Power(id int) (int, error) {
	var p int
	err := r.with(id, func(c *channel) { p = c.requested })
	return p, err
}

// Bypass sets requested and applied power together and commands the hardware
// immediately, skipping slew limiting. The command is issued under the
// channel lock, so no pass can follow it with a stale value.
func (r *Registry) Bypass(id, power int) error {
	power = clampInt(power)
	return r.with(id, func(c *channel) {
		c.requested = power
		c.artificial = float64(power)
		r.act.Command(id, power)
	})
}

// SetRaw commands the hardware directly without touching the channel. A
// running slew pass will overwrite it unless the channel is inactive.
func (r *Registry) SetRaw(id, power int) error {
	if _, err := r.lookup(id); err != nil {
		return err
	}
	r.act.Command(id, clampInt(power))
	return nil
}

func (r *Registry) SetSlew(id int, slew float64) error {
	if slew <= 0 {
		return ErrInvalidSlew
	}
	return r.with(id, func(c *channel) { c.slew = slew })
}

// SetActive enables or disables slew updates for a channel.
func (r *Registry) SetActive(id int, active bool) error {
	return r.with(id, func(c *channel) { c.active = active })
}

// Channel returns a snapshot of a registered channel.
func (r *Registry) Channel(id int) (ChannelState, error) {
	var st ChannelState
	err := r.with(id, func(c *channel) {
		st = ChannelState{
			ID:         id,
			Requested:  c.requested,
			Artificial: c.artificial,
			Slew:       c.slew,
			Active:     c.active,
		}
	})
	return st, err
}

// Channels returns snapshots of every registered channel in id order.
func (r *Registry) Channels() []ChannelState {
	out := make([]ChannelState, 0, NumChannels)
	for id := 0; id < NumChannels; id++ {
		if st, err := r.Channel(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// Pass advances every active channel by one slew step and commands the
// hardware for each channel that changed.
func (r *Registry) Pass() {
	for id := range r.slots {
		s := &r.slots[id]

		s.mu.Lock()
		if s.ch.registered && s.ch.active && s.ch.advance() {
			r.act.Command(id, int(s.ch.artificial))
		}
		s.mu.Unlock()
	}
}

// Run calls Pass every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPassInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("slew pass started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("slew pass stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Pass()
		}
	}
}

func clampInt(p int) int {
	if p > MaxPower {
		return MaxPower
	}
	if p < MinPower {
		return MinPower
	}
	return p
}
