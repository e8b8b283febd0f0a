package control

// Idle always outputs zero, letting the mechanism coast.
type Idle struct{}

func NewIdle() *Idle {
	return &Idle{}
}

func (*Idle) Step(float64) float64 { return 0 }

func (*Idle) Output() float64 { return 0 }
