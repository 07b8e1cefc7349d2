/*package tabular implements the container file format used by the output
layer. One container file holds any number of named row-oriented tables.
Rows are committed in batches: each batch becomes one self-delimiting block
in the file, so a crashed run can be recovered up to its last durable
checkpoint by scanning blocks until the torn tail.

The pattern is that you create a single File with Create, register tables
with CreateTable, append row batches with Table.Append, and finally call
Close when the run is over. The file is written under a temporary
".unfinished" name and only renamed to its real name by Close, so a file
that still carries the suffix marks an incomplete run.

Tables are owned by the File for its whole lifetime. CreateTable hands out
borrowed handles, never independently owned objects.*/
package tabular

const (
	// MagicNumber is an arbitrary number at the start of all container files
	// which should help identify when the code is run on something else by
	// accident.
	MagicNumber = 0xb10cf11e
	// ReverseMagicNumber is the magic number if read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0x1ef10cb1
	Version = 1

	// UnfinishedSuffix is appended to the file name until Close renames the
	// file. Its presence marks a run that did not shut down cleanly.
	UnfinishedSuffix = ".unfinished"
)

// Column types. Scalar columns store one value per row, array columns store
// a short length-prefixed array per row (used for per-participant data in
// collision records).
const (
	Float64Col      = "f64"
	Int32Col        = "i32"
	Float64ArrayCol = "f64a"
	Int32ArrayCol   = "i32a"
)

// Column describes one column of a table: a name and one of the type codes
// above. Column order and naming are part of the file's schema and must stay
// stable across versions for downstream analysis tooling.
type Column struct {
	Name, Type string
}

// Block tags. Every block in the file starts with one of these.
const (
	blockSchema uint32 = iota + 1
	blockRows
	blockEnd
)
