package actuator

import (
	"sync"
	"time"
)

// Command is one power command sent to a channel.
type Command struct {
	Channel int
	Power   int
	At      time.Time
}

// Recorder is an in-memory actuator. It keeps the last power for every
// channel and, up to a fixed depth, the commands in the order received.
type Recorder struct {
	mu      sync.Mutex
	last    map[int]int
	history []Command
	depth   int
}

// NewRecorder keeps at most depth history entries; depth <= 0 keeps none.
func NewRecorder(depth int) *Recorder {
	return &Recorder{last: make(map[int]int), depth: depth}
}

func (r *Recorder) Command(channel, power int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last[channel] = power
	if r.depth <= 0 {
		return
	}
	if len(r.history) == r.depth {
		copy(r.history, r.history[1:])
		r.history = r.history[:len(r.history)-1]
	}
	r.history = append(r.history, Command{Channel: channel, Power: power, At: time.Now()})
}

// Power returns the last power commanded on channel, 0 if none.
func (r *Recorder) Power(channel int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[channel]
}

// History returns a copy of the recorded commands, oldest first.
func (r *Recorder) History() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.history))
	copy(out, r.history)
	return out
}

// Count returns how many recorded commands targeted channel.
func (r *Recorder) Count(channel int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.history {
		if c.Channel == channel {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[int]int)
	r.history = r.history[:0]
}
