package plant

// Integrator advances a model by dt seconds under constant duty.
type Integrator interface {
	Step(m Model, x State, duty, dt float64) State
}

type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (RK4) Step(m Model, x State, duty, dt float64) State {
	k1 := m.Derive(x, duty)
	k2 := m.Derive(x.add(k1, dt*0.5), duty)
	k3 := m.Derive(x.add(k2, dt*0.5), duty)
	k4 := m.Derive(x.add(k3, dt), duty)

	dt6 := dt / 6.0
	return State{
		Position: x.Position + dt6*(k1.Position+2*k2.Position+2*k3.Position+k4.Position),
		Velocity: x.Velocity + dt6*(k1.Velocity+2*k2.Velocity+2*k3.Velocity+k4.Velocity),
	}
}

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (Euler) Step(m Model, x State, duty, dt float64) State {
	return x.add(m.Derive(x, duty), dt)
}

func (s State) add(d State, h float64) State {
	return State{Position: s.Position + h*d.Position, Velocity: s.Velocity + h*d.Velocity}
}
