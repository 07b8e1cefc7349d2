/*package output writes per-event particle and collision data to disk. The
simulation driver owns a set of output adapters and calls each of them once
per lifecycle event: at the start of an event, at configured intermediate
times, at every interaction, and at the end of the event. Writer is the
adapter producing the tabular container format of lib/tabular.*/
package output

import (
	"github.com/Triple-S/smash/lib/particles"
)

// Interface is the callback contract between the simulation driver and an
// output adapter. The driver guarantees the call order
// AtEventStart, (AtIntermediateTime | AtInteraction)*, AtEventEnd
// for each event, and a single Close after the last event.
type Interface interface {
	// AtEventStart is called once before an event begins, with the initial
	// particle state.
	AtEventStart(snap particles.Snapshot, eventNumber int) error
	// AtEventEnd is called once after an event completes, with the final
	// particle state, the sampled impact parameter, and whether the
	// projectile and target passed through each other without interacting.
	AtEventEnd(snap particles.Snapshot, eventNumber int,
		impactParameter float64, emptyEvent bool) error
	// AtIntermediateTime is called at every output time step between start
	// and end.
	AtIntermediateTime(snap particles.Snapshot, clock *Clock,
		dens *DensityParameters) error
	// AtInteraction is called for every interaction between particles.
	AtInteraction(action *particles.Action, density float64) error
	// Close finalizes the output file. No callback may be used afterwards.
	Close() error
}

// Clock carries the simulation time state to AtIntermediateTime. The
// tabular writer does not use it, but it is part of the contract shared by
// all output adapters.
type Clock struct {
	// Time is the current simulation time and Dt the timestep, in fm/c.
	Time, Dt float64
}

// DensityParameters carries the density smearing configuration to
// AtIntermediateTime. Like Clock, it is unused by the tabular writer.
type DensityParameters struct {
	// Sigma is the Gaussian smearing width in fm.
	Sigma float64
	// NTest is the number of test particles per physical particle.
	NTest int32
}
