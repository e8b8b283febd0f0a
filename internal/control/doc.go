// Package control provides the feedback controllers that turn sensor samples
// into actuator power:
//
//   - [PositionPID]: PID on absolute position with integral anti-windup and bias
//   - [VelocityPID]: PD on estimated velocity, accumulating output changes
//   - [VelocityTBH]: take-back-half velocity control seeded by an open-loop guess
//   - [BangBang]: two-level velocity control
//   - [Manual], [Idle]: operator-held and zero outputs
//
// Every controller implements [Stepper]. Step reads the controller's clock,
// and a call with no elapsed time since the previous sample leaves all state
// untouched and returns 0.
//
// # Usage
//
//	clk := clock.NewSystem()
//	tbh := control.NewVelocityTBH(clk, 0.05, 60, control.QuadEncoderTPR)
//	tbh.SetTargetVelocity(2400, 70)
//	for range ticker.C {
//		power := tbh.Step(encoder.Ticks())
//		reg.SetPower(flywheelPort, motor.ClampPower(power))
//	}
//
// Controllers are not safe for concurrent use; each instance belongs to one
// stepping loop. Controllers implementing [Configurable] support live tuning.
package control
