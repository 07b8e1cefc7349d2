/*package particles contains the particle state types consumed by the output
layer. A Snapshot is a read-only view of all particles at a single simulated
time, and an Action describes one interaction between particles.*/
package particles

// Particle is the state of a single particle at a fixed time. Positions and
// times are in fm, momenta and energies in GeV.
type Particle struct {
	// T, X, Y, Z are the time and position coordinates.
	T, X, Y, Z float64
	// P0, Px, Py, Pz are the energy and momentum components.
	P0, Px, Py, Pz float64
	// PdgCode is the PDG Monte Carlo code identifying the species.
	PdgCode int32
	// Charge is the electric charge in units of the elementary charge.
	Charge int32

	// FormationTime is the time at which the particle becomes fully formed.
	FormationTime float64
	// XSecFactor scales the particle's cross sections before formation.
	XSecFactor float64
	// TimeLastCollision is the time of the particle's latest interaction.
	TimeLastCollision float64
	// CollisionCount is the number of collisions the particle underwent.
	CollisionCount int32
	// ProcIDOrigin and ProcTypeOrigin identify the process that produced
	// the particle.
	ProcIDOrigin, ProcTypeOrigin int32
	// PdgMother1 and PdgMother2 are the species codes of the particle's
	// parents, if any.
	PdgMother1, PdgMother2 int32
}

// Snapshot is a read-only view of particle state at a single simulated time.
// Anything that can enumerate particles can be written to output through
// this interface, which avoids separate write paths for full simulation
// state and ad hoc particle lists.
type Snapshot interface {
	// Len returns the number of particles in the snapshot.
	Len() int
	// Get returns the i'th particle. It must be valid for 0 <= i < Len().
	Get(i int) Particle
}

// ParticleList is the simplest Snapshot: a slice of particles.
type ParticleList []Particle

// Type assertion
var _ Snapshot = ParticleList{ }

func (p ParticleList) Len() int { return len(p) }
func (p ParticleList) Get(i int) Particle { return p[i] }

// Action describes one interaction: the particles that entered it, the
// particles that left it, and the sampling weights attached to it.
type Action struct {
	// Incoming and Outgoing are the participants before and after the
	// interaction.
	Incoming, Outgoing ParticleList
	// Weight is the total weight of the interaction.
	Weight float64
	// PartialWeight is the weight of the sampled channel.
	PartialWeight float64
}
