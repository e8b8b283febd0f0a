package motor_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/motorkit/internal/actuator"
	"github.com/san-kum/motorkit/internal/motor"
)

var _ = Describe("Registry", func() {
	var (
		rec *actuator.Recorder
		reg *motor.Registry
	)

	BeforeEach(func() {
		rec = actuator.NewRecorder(256)
		reg = motor.NewRegistry(rec, nil)
		Expect(reg.Register(1, motor.DefaultSlewRate)).To(Succeed())
	})

	Describe("Pass", func() {
		It("reaches the requested power in exact slew steps", func() {
			Expect(reg.SetPower(1, 100)).To(Succeed())

			for i := 1; i <= 10; i++ {
				reg.Pass()
				ch, err := reg.Channel(1)
				Expect(err).NotTo(HaveOccurred())
				Expect(ch.Artificial).To(Equal(float64(10 * i)))
			}
			Expect(rec.Power(1)).To(Equal(100))
			Expect(rec.Count(1)).To(Equal(10))

			reg.Pass()
			reg.Pass()
			Expect(rec.Count(1)).To(Equal(10))
		})

		It("does not overshoot on the last step", func() {
			Expect(reg.SetSlew(1, 30)).To(Succeed())
			Expect(reg.SetPower(1, -50)).To(Succeed())

			reg.Pass()
			reg.Pass()
			Expect(rec.Power(1)).To(Equal(-50))
		})

		It("keeps applied power inside the actuator range", func() {
			Expect(reg.SetSlew(1, motor.FastSlewRate)).To(Succeed())
			for _, p := range []int{1000, -1000, 127, -128, 0, 500} {
				Expect(reg.SetPower(1, p)).To(Succeed())
				reg.Pass()
				ch, _ := reg.Channel(1)
				Expect(ch.Artificial).To(BeNumerically(">=", motor.MinPower))
				Expect(ch.Artificial).To(BeNumerically("<=", motor.MaxPower))
			}
		})

		It("skips inactive channels", func() {
			Expect(reg.SetPower(1, 50)).To(Succeed())
			Expect(reg.SetActive(1, false)).To(Succeed())

			reg.Pass()
			ch, _ := reg.Channel(1)
			Expect(ch.Artificial).To(BeZero())
			Expect(rec.History()).To(BeEmpty())

			Expect(reg.SetActive(1, true)).To(Succeed())
			reg.Pass()
			Expect(rec.Power(1)).To(Equal(10))
		})

		It("ignores unregistered channels", func() {
			reg.Pass()
			Expect(rec.History()).To(BeEmpty())
		})
	})

	Describe("Bypass", func() {
		It("sets requested and applied power and commands immediately", func() {
			Expect(reg.Bypass(1, -80)).To(Succeed())

			ch, _ := reg.Channel(1)
			Expect(ch.Requested).To(Equal(-80))
			Expect(ch.Artificial).To(Equal(-80.0))
			Expect(rec.Power(1)).To(Equal(-80))

			reg.Pass()
			Expect(rec.Count(1)).To(Equal(1))
		})

		It("is not overwritten by a pass already commanding the channel", func() {
			act := newGatedActuator()
			reg = motor.NewRegistry(act, nil)
			Expect(reg.Register(1, motor.DefaultSlewRate)).To(Succeed())
			Expect(reg.SetPower(1, 100)).To(Succeed())

			passed := make(chan struct{})
			go func() {
				defer close(passed)
				reg.Pass()
			}()
			Eventually(act.entered).Should(BeClosed())

			stopped := make(chan error, 1)
			go func() { stopped <- reg.Bypass(1, 0) }()
			Consistently(stopped, 50*time.Millisecond).ShouldNot(Receive())

			close(act.release)
			Eventually(passed).Should(BeClosed())
			Eventually(stopped).Should(Receive(BeNil()))

			reg.Pass()
			Expect(act.last(1)).To(Equal(0))
			ch, _ := reg.Channel(1)
			Expect(ch.Requested).To(Equal(0))
			Expect(ch.Artificial).To(BeZero())
		})
	})

	Describe("channel ids", func() {
		It("rejects ids outside the registry", func() {
			Expect(reg.SetPower(-1, 10)).To(MatchError(motor.ErrUnknownChannel))
			Expect(reg.SetPower(motor.NumChannels, 10)).To(MatchError(motor.ErrUnknownChannel))
			Expect(reg.Register(motor.NumChannels, 10)).To(MatchError(motor.ErrUnknownChannel))
		})

		It("rejects channels never registered", func() {
			_, err := reg.Power(3)
			Expect(err).To(MatchError(motor.ErrUnknownChannel))
		})

		It("rejects non-positive slew", func() {
			Expect(reg.Register(2, 0)).To(MatchError(motor.ErrInvalidSlew))
			Expect(reg.SetSlew(1, -1)).To(MatchError(motor.ErrInvalidSlew))
		})
	})

	It("clamps requested power on set", func() {
		Expect(reg.SetPower(1, 400)).To(Succeed())
		Expect(reg.Power(1)).To(Equal(motor.MaxPower))
	})

	It("sends raw commands without touching the channel", func() {
		Expect(reg.SetRaw(1, 77)).To(Succeed())
		Expect(rec.Power(1)).To(Equal(77))
		ch, _ := reg.Channel(1)
		Expect(ch.Artificial).To(BeZero())
	})

	It("lists registered channels in order", func() {
		Expect(reg.Register(4, motor.FastSlewRate)).To(Succeed())
		chans := reg.Channels()
		Expect(chans).To(HaveLen(2))
		Expect(chans[0].ID).To(Equal(1))
		Expect(chans[1].ID).To(Equal(4))
	})

	It("tolerates concurrent producers during passes", func() {
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_ = reg.SetPower(1, (i*w)%255-127)
				}
			}(w)
		}
		for i := 0; i < 200; i++ {
			reg.Pass()
		}
		wg.Wait()

		ch, _ := reg.Channel(1)
		Expect(ch.Artificial).To(BeNumerically(">=", motor.MinPower))
		Expect(ch.Artificial).To(BeNumerically("<=", motor.MaxPower))
	})

	It("runs passes until the context is cancelled", func() {
		Expect(reg.SetPower(1, 30)).To(Succeed())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- reg.Run(ctx, time.Millisecond) }()

		Eventually(func() int { return rec.Power(1) }).Should(Equal(30))
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})

var _ = Describe("ClampPower", func() {
	DescribeTable("bounds controller output",
		func(in float64, want int) {
			Expect(motor.ClampPower(in)).To(Equal(want))
		},
		Entry("inside", 42.9, 42),
		Entry("negative inside", -42.9, -42),
		Entry("above", 300.0, motor.MaxPower),
		Entry("below", -300.0, motor.MinPower),
	)
})

// gatedActuator holds its first command until release is closed.
type gatedActuator struct {
	mu      sync.Mutex
	power   map[int]int
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedActuator() *gatedActuator {
	return &gatedActuator{
		power:   make(map[int]int),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedActuator) Command(channel, power int) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.mu.Lock()
	g.power[channel] = power
	g.mu.Unlock()
}

func (g *gatedActuator) last(channel int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.power[channel]
}
