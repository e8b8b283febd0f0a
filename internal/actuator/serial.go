package actuator

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
)

// SerialConfig describes the motor controller's serial link.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	// FramesPerSecond caps how fast frames go out; 0 means unlimited.
	FramesPerSecond float64 `yaml:"frames_per_second"`
	// OpenTimeout bounds the retries while the port is coming up.
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Port:            "/dev/ttyUSB0",
		Baud:            115200,
		FramesPerSecond: 500,
		OpenTimeout:     3 * time.Second,
	}
}

// openPort is swapped out in tests.
var openPort = func(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// Serial sends power commands as frames over a serial port. Command never
// blocks: the latest power per channel is kept until the writer goroutine
// sends it, so a slow link drops intermediate values rather than queueing.
type Serial struct {
	port    io.ReadWriteCloser
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int]int
	closed  bool
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the port, retrying with exponential backoff until
// cfg.OpenTimeout elapses, and starts the writer.
func OpenSerial(cfg SerialConfig, logger *slog.Logger) (*Serial, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var port io.ReadWriteCloser
	op := func() error {
		p, err := openPort(cfg.Port, cfg.Baud)
		if err != nil {
			logger.Debug("serial open failed", "port", cfg.Port, "err", err)
			return err
		}
		port = p
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      cfg.OpenTimeout,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Port)
	}

	logger.Info("serial actuator open", "port", cfg.Port, "baud", cfg.Baud)
	return newSerial(port, cfg.FramesPerSecond, logger), nil
}

func newSerial(port io.ReadWriteCloser, fps float64, logger *slog.Logger) *Serial {
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Serial{
		port:    port,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		pending: make(map[int]int),
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.writer(ctx)
	return s
}

// Command queues power for channel, replacing any unsent value. Commands
// after Close are dropped with a warning.
func (s *Serial) Command(channel, power int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("serial command after close", "channel", channel, "power", power)
		return
	}
	s.pending[channel] = power
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Serial) take() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	out := s.pending
	s.pending = make(map[int]int)
	return out
}

func (s *Serial) writer(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		batch := s.take()
		channels := sortedChannels(batch)
		for i, ch := range channels {
			if err := s.limiter.Wait(ctx); err != nil {
				s.requeue(batch, channels[i:])
				return
			}
			if err := s.send(ch, batch[ch]); err != nil {
				s.logger.Warn("serial write failed", "channel", ch, "power", batch[ch], "err", err)
			}
		}
	}
}

// requeue puts unsent commands back unless a newer one arrived meanwhile.
func (s *Serial) requeue(batch map[int]int, channels []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if _, newer := s.pending[ch]; !newer {
			s.pending[ch] = batch[ch]
		}
	}
}

func sortedChannels(batch map[int]int) []int {
	channels := make([]int, 0, len(batch))
	for ch := range batch {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}

func (s *Serial) send(channel, power int) error {
	frame, err := EncodeFrame(channel, power)
	if err != nil {
		return err
	}
	_, err = s.port.Write(frame)
	return errors.Wrap(err, "write frame")
}

// Close stops the writer, sends whatever is still pending without rate
// limiting and closes the port. A final stop command is never dropped;
// later commands are.
func (s *Serial) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		<-s.done

		batch := s.take()
		for _, ch := range sortedChannels(batch) {
			if err := s.send(ch, batch[ch]); err != nil {
				s.logger.Warn("serial flush failed", "channel", ch, "power", batch[ch], "err", err)
			}
		}
		s.closeErr = errors.Wrap(s.port.Close(), "close serial port")
	})
	return s.closeErr
}
