package output

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/Triple-S/smash/lib/particles"
	"github.com/Triple-S/smash/lib/tabular"
)

const (
	// MaxBufferSize is the largest number of particles that can be written
	// in a single output block. Blocks above this size fail with a
	// CapacityExceededError instead of being written.
	MaxBufferSize = 10000

	// Ext is the extension of the container files the Writer produces.
	Ext = ".evt"

	// DefaultAutosaveFrequency is the number of completed events between
	// durable checkpoints when Options doesn't say otherwise.
	DefaultAutosaveFrequency = 1000
)

// CapacityExceededError reports a block that holds more entries than the
// writer's buffers allow. Callers that legitimately produce larger blocks
// have to split them explicitly; the writer never splits a block on its
// own, because the block counter tags rows downstream.
type CapacityExceededError struct {
	// Table is the table the block was meant for.
	Table string
	// N is the rejected entry count, Capacity the maximum.
	N, Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("A block of %d entries was passed to the '%s' " +
		"table, but one output block can hold at most %d. Split the block " +
		"before writing it.", e.N, e.Table, e.Capacity)
}

// Options selects what the Writer puts into the file. The zero value writes
// nothing; most callers start from DefaultOptions.
type Options struct {
	// WriteParticles enables the particles table.
	WriteParticles bool
	// WriteCollisions enables the collisions table.
	WriteCollisions bool
	// WriteInitialConditions writes only the initial-state particle block
	// of each event. It enables the particles table on its own.
	WriteInitialConditions bool
	// ParticlesOnlyFinal suppresses the initial and intermediate particle
	// blocks, leaving one final block per event.
	ParticlesOnlyFinal bool

	// ExtendedParticles, ExtendedCollisions, and ExtendedIC add the
	// extended columns to the corresponding output.
	ExtendedParticles, ExtendedCollisions, ExtendedIC bool

	// AutosaveFrequency is the number of completed events between durable
	// checkpoints. An unfinished file can be recovered up to the last
	// checkpoint after a crash. Checkpoints are expensive, so the value
	// trades write speed against how much a crash can lose. Zero means
	// DefaultAutosaveFrequency, a negative value disables checkpointing.
	AutosaveFrequency int

	// Compress enables zstd compression of the row batches.
	Compress bool
}

// DefaultOptions returns the options used when a config file doesn't
// override them: particle output on, everything else off, checkpoint every
// DefaultAutosaveFrequency events.
func DefaultOptions() Options {
	return Options{
		WriteParticles: true,
		AutosaveFrequency: DefaultAutosaveFrequency,
	}
}

// Writer writes events to a tabular container file with up to two tables,
// "particles" and "collisions". It implements Interface. A Writer is not
// safe for concurrent use; the driver calls it from a single goroutine.
type Writer struct {
	file *tabular.File
	particlesTable, collisionsTable *tabular.Table
	opts Options

	// Column buffers for particle blocks. They grow up to MaxBufferSize
	// and are reused between blocks.
	t, x, y, z, p0, px, py, pz []float64
	pdgcode, charge, ev, tcounter []int32
	impactB []float64
	emptyEvent []int32
	formationTime, xsecFactor, timeLastColl []float64
	collCount, procID, procType, mother1, mother2 []int32

	// outputCounter numbers the blocks within the current event,
	// eventsDone counts completed events for the autosave schedule.
	outputCounter int
	currentEvent int
	eventsDone int
	curImpactB float64
	curEmptyEvent bool
}

// Type assertion
var _ Interface = &Writer{ }

// NewWriter creates a container file dir/name + Ext and the tables the
// options ask for. Construction fails if the directory isn't writable. The
// file keeps an ".unfinished" suffix until Close, which is how interrupted
// runs are recognized.
func NewWriter(dir, name string, opts Options) (*Writer, error) {
	if opts.AutosaveFrequency == 0 {
		opts.AutosaveFrequency = DefaultAutosaveFrequency
	}

	fname := filepath.Join(dir, name + Ext)
	file, err := tabular.Create(fname, binary.LittleEndian, opts.Compress)
	if err != nil { return nil, err }

	w := &Writer{ file: file, opts: opts }

	if opts.WriteParticles || opts.WriteInitialConditions {
		ext := opts.ExtendedParticles ||
			(opts.WriteInitialConditions && opts.ExtendedIC)
		w.particlesTable, err = file.CreateTable(
			"particles", particleColumns(ext))
		if err != nil {
			file.Abort()
			return nil, err
		}
	}
	if opts.WriteCollisions {
		w.collisionsTable, err = file.CreateTable(
			"collisions", collisionColumns(opts.ExtendedCollisions))
		if err != nil {
			file.Abort()
			return nil, err
		}
	}

	return w, nil
}

// AtEventStart resets the per-event block counter and writes the initial
// particle block, unless suppressed by ParticlesOnlyFinal.
func (w *Writer) AtEventStart(
	snap particles.Snapshot, eventNumber int,
) error {
	w.currentEvent = eventNumber
	w.outputCounter = 0

	writeStart := (w.opts.WriteParticles && !w.opts.ParticlesOnlyFinal) ||
		w.opts.WriteInitialConditions
	if !writeStart { return nil }
	return w.writeParticleBlock(snap)
}

// AtEventEnd records the impact parameter and empty-event flag, writes the
// final particle block, and checkpoints the file every AutosaveFrequency
// completed events.
func (w *Writer) AtEventEnd(
	snap particles.Snapshot, eventNumber int,
	impactParameter float64, emptyEvent bool,
) error {
	w.currentEvent = eventNumber
	w.curImpactB = impactParameter
	w.curEmptyEvent = emptyEvent

	if w.opts.WriteParticles {
		if err := w.writeParticleBlock(snap); err != nil { return err }
	}

	w.eventsDone++
	freq := w.opts.AutosaveFrequency
	if freq > 0 && w.eventsDone%freq == 0 {
		if err := w.file.Checkpoint(); err != nil {
			return fmt.Errorf("Checkpointing the output file after event " +
				"%d failed: %v. Rows made durable by earlier checkpoints " +
				"are unaffected.", eventNumber, err)
		}
	}

	return nil
}

// AtIntermediateTime writes an intermediate particle block. It does nothing
// when intermediate output is disabled. clock and dens are accepted for
// interface uniformity and unused.
func (w *Writer) AtIntermediateTime(
	snap particles.Snapshot, clock *Clock, dens *DensityParameters,
) error {
	if !w.opts.WriteParticles || w.opts.ParticlesOnlyFinal {
		return nil
	}
	return w.writeParticleBlock(snap)
}

// AtInteraction writes one collision record. density is accepted for
// interface uniformity and unused.
func (w *Writer) AtInteraction(
	action *particles.Action, density float64,
) error {
	if !w.opts.WriteCollisions { return nil }
	return w.writeCollisionRow(
		action.Incoming, action.Outgoing,
		action.Weight, action.PartialWeight,
	)
}

// Close finalizes the container file, dropping the ".unfinished" suffix.
func (w *Writer) Close() error {
	return w.file.Close()
}

// writeParticleBlock copies the snapshot into the column buffers, tags each
// row with the event number and block counter, and commits the batch.
func (w *Writer) writeParticleBlock(snap particles.Snapshot) error {
	n := snap.Len()
	if n > MaxBufferSize {
		return &CapacityExceededError{ "particles", n, MaxBufferSize }
	}

	w.expandBuffers(n)
	empty := int32(0)
	if w.curEmptyEvent { empty = 1 }

	for i := 0; i < n; i++ {
		p := snap.Get(i)
		w.t[i], w.x[i], w.y[i], w.z[i] = p.T, p.X, p.Y, p.Z
		w.p0[i], w.px[i], w.py[i], w.pz[i] = p.P0, p.Px, p.Py, p.Pz
		w.pdgcode[i], w.charge[i] = p.PdgCode, p.Charge
		w.ev[i] = int32(w.currentEvent)
		w.tcounter[i] = int32(w.outputCounter)
		w.impactB[i] = w.curImpactB
		w.emptyEvent[i] = empty
	}

	data := []interface{}{
		w.t, w.x, w.y, w.z, w.p0, w.px, w.py, w.pz,
		w.pdgcode, w.charge, w.ev, w.tcounter, w.impactB, w.emptyEvent,
	}

	if w.particlesExtended() {
		for i := 0; i < n; i++ {
			p := snap.Get(i)
			w.formationTime[i] = p.FormationTime
			w.xsecFactor[i] = p.XSecFactor
			w.timeLastColl[i] = p.TimeLastCollision
			w.collCount[i] = p.CollisionCount
			w.procID[i] = p.ProcIDOrigin
			w.procType[i] = p.ProcTypeOrigin
			w.mother1[i] = p.PdgMother1
			w.mother2[i] = p.PdgMother2
		}
		data = append(data,
			w.formationTime, w.xsecFactor, w.timeLastColl,
			w.collCount, w.procID, w.procType, w.mother1, w.mother2,
		)
	}

	if err := w.particlesTable.Append(n, data); err != nil { return err }
	w.outputCounter++
	return nil
}

// writeCollisionRow commits one collisions row holding the coordinates and
// momenta of all incoming and outgoing participants.
func (w *Writer) writeCollisionRow(
	in, out particles.ParticleList, weight, partialWeight float64,
) error {
	n := len(in) + len(out)
	if n > MaxBufferSize {
		return &CapacityExceededError{ "collisions", n, MaxBufferSize }
	}

	t := make([]float64, n)
	x, y, z := make([]float64, n), make([]float64, n), make([]float64, n)
	p0 := make([]float64, n)
	px, py, pz := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		p := participant(in, out, i)
		t[i], x[i], y[i], z[i] = p.T, p.X, p.Y, p.Z
		p0[i], px[i], py[i], pz[i] = p.P0, p.Px, p.Py, p.Pz
	}

	data := []interface{}{
		[]int32{ int32(len(in)) }, []int32{ int32(len(out)) },
		[]int32{ int32(w.currentEvent) },
		[]float64{ weight }, []float64{ partialWeight },
		[][]float64{ t }, [][]float64{ x },
		[][]float64{ y }, [][]float64{ z },
		[][]float64{ p0 }, [][]float64{ px },
		[][]float64{ py }, [][]float64{ pz },
	}

	if w.opts.ExtendedCollisions {
		formationTime := make([]float64, n)
		xsecFactor := make([]float64, n)
		timeLastColl := make([]float64, n)
		collCount := make([]int32, n)
		procID, procType := make([]int32, n), make([]int32, n)
		mother1, mother2 := make([]int32, n), make([]int32, n)
		for i := 0; i < n; i++ {
			p := participant(in, out, i)
			formationTime[i] = p.FormationTime
			xsecFactor[i] = p.XSecFactor
			timeLastColl[i] = p.TimeLastCollision
			collCount[i] = p.CollisionCount
			procID[i], procType[i] = p.ProcIDOrigin, p.ProcTypeOrigin
			mother1[i], mother2[i] = p.PdgMother1, p.PdgMother2
		}
		data = append(data,
			[][]float64{ formationTime }, [][]float64{ xsecFactor },
			[][]float64{ timeLastColl },
			[][]int32{ collCount }, [][]int32{ procID },
			[][]int32{ procType }, [][]int32{ mother1 },
			[][]int32{ mother2 },
		)
	}

	return w.collisionsTable.Append(1, data)
}

// participant indexes the concatenation of the incoming and outgoing lists.
func participant(in, out particles.ParticleList, i int) particles.Particle {
	if i < len(in) { return in[i] }
	return out[i-len(in)]
}

func (w *Writer) particlesExtended() bool {
	return w.opts.ExtendedParticles ||
		(w.opts.WriteInitialConditions && w.opts.ExtendedIC)
}

// expandBuffers resizes every particle column buffer to n entries.
func (w *Writer) expandBuffers(n int) {
	w.t, w.x = expandFloat64(w.t, n), expandFloat64(w.x, n)
	w.y, w.z = expandFloat64(w.y, n), expandFloat64(w.z, n)
	w.p0, w.px = expandFloat64(w.p0, n), expandFloat64(w.px, n)
	w.py, w.pz = expandFloat64(w.py, n), expandFloat64(w.pz, n)
	w.pdgcode = expandInt32(w.pdgcode, n)
	w.charge = expandInt32(w.charge, n)
	w.ev, w.tcounter = expandInt32(w.ev, n), expandInt32(w.tcounter, n)
	w.impactB = expandFloat64(w.impactB, n)
	w.emptyEvent = expandInt32(w.emptyEvent, n)

	if !w.particlesExtended() { return }
	w.formationTime = expandFloat64(w.formationTime, n)
	w.xsecFactor = expandFloat64(w.xsecFactor, n)
	w.timeLastColl = expandFloat64(w.timeLastColl, n)
	w.collCount = expandInt32(w.collCount, n)
	w.procID, w.procType = expandInt32(w.procID, n), expandInt32(w.procType, n)
	w.mother1, w.mother2 = expandInt32(w.mother1, n), expandInt32(w.mother2, n)
}

// expandFloat64 expands an array to have size n.
func expandFloat64(x []float64, n int) []float64 {
	m := len(x)
	if m < n { x = append(x, make([]float64, n-m)...) }
	return x[:n]
}

// expandInt32 expands an array to have size n.
func expandInt32(x []int32, n int) []int32 {
	m := len(x)
	if m < n { x = append(x, make([]int32, n-m)...) }
	return x[:n]
}

// particleColumns is the versioned schema of the particles table. Column
// order and names are relied on by downstream analysis and must not change
// within a format version.
func particleColumns(extended bool) []tabular.Column {
	cols := []tabular.Column{
		{ Name: "t", Type: tabular.Float64Col }, { Name: "x", Type: tabular.Float64Col },
		{ Name: "y", Type: tabular.Float64Col }, { Name: "z", Type: tabular.Float64Col },
		{ Name: "p0", Type: tabular.Float64Col }, { Name: "px", Type: tabular.Float64Col },
		{ Name: "py", Type: tabular.Float64Col }, { Name: "pz", Type: tabular.Float64Col },
		{ Name: "pdgcode", Type: tabular.Int32Col }, { Name: "charge", Type: tabular.Int32Col },
		{ Name: "ev", Type: tabular.Int32Col }, { Name: "tcounter", Type: tabular.Int32Col },
		{ Name: "impact_b", Type: tabular.Float64Col },
		{ Name: "empty_event", Type: tabular.Int32Col },
	}
	if extended {
		cols = append(cols,
			tabular.Column{ Name: "formation_time", Type: tabular.Float64Col },
			tabular.Column{ Name: "xsec_factor", Type: tabular.Float64Col },
			tabular.Column{ Name: "time_last_coll", Type: tabular.Float64Col },
			tabular.Column{ Name: "coll_per_part", Type: tabular.Int32Col },
			tabular.Column{ Name: "proc_id_origin", Type: tabular.Int32Col },
			tabular.Column{ Name: "proc_type_origin", Type: tabular.Int32Col },
			tabular.Column{ Name: "pdg_mother1", Type: tabular.Int32Col },
			tabular.Column{ Name: "pdg_mother2", Type: tabular.Int32Col },
		)
	}
	return cols
}

// collisionColumns is the versioned schema of the collisions table. The
// array columns hold one entry per participant, nin + nout in total.
func collisionColumns(extended bool) []tabular.Column {
	cols := []tabular.Column{
		{ Name: "nin", Type: tabular.Int32Col }, { Name: "nout", Type: tabular.Int32Col },
		{ Name: "ev", Type: tabular.Int32Col },
		{ Name: "wgt", Type: tabular.Float64Col }, { Name: "par_wgt", Type: tabular.Float64Col },
		{ Name: "t", Type: tabular.Float64ArrayCol }, { Name: "x", Type: tabular.Float64ArrayCol },
		{ Name: "y", Type: tabular.Float64ArrayCol }, { Name: "z", Type: tabular.Float64ArrayCol },
		{ Name: "p0", Type: tabular.Float64ArrayCol }, { Name: "px", Type: tabular.Float64ArrayCol },
		{ Name: "py", Type: tabular.Float64ArrayCol }, { Name: "pz", Type: tabular.Float64ArrayCol },
	}
	if extended {
		cols = append(cols,
			tabular.Column{ Name: "formation_time", Type: tabular.Float64ArrayCol },
			tabular.Column{ Name: "xsec_factor", Type: tabular.Float64ArrayCol },
			tabular.Column{ Name: "time_last_coll", Type: tabular.Float64ArrayCol },
			tabular.Column{ Name: "coll_per_part", Type: tabular.Int32ArrayCol },
			tabular.Column{ Name: "proc_id_origin", Type: tabular.Int32ArrayCol },
			tabular.Column{ Name: "proc_type_origin", Type: tabular.Int32ArrayCol },
			tabular.Column{ Name: "pdg_mother1", Type: tabular.Int32ArrayCol },
			tabular.Column{ Name: "pdg_mother2", Type: tabular.Int32ArrayCol },
		)
	}
	return cols
}
