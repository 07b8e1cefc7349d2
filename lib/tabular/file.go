package tabular

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/DataDog/zstd"
)

// File is a handle to an open container file. It owns the underlying file
// descriptor and every Table created in it. Writes are buffered; nothing is
// durable until Checkpoint or Close.
type File struct {
	fname, unfinished string
	f      *os.File
	buf    *bufio.Writer
	order  binary.ByteOrder
	zstd   bool
	tables []*Table
	closed bool

	// payload and zbuf are reused across Append calls to avoid heap
	// allocations in the per-block hot path.
	payload *bytes.Buffer
	zbuf    []byte
}

// Table is a borrowed handle to one table inside a File. It stays valid
// until the File is closed.
type Table struct {
	file  *File
	id    uint32
	name  string
	cols  []Column
	nRows int64
}

// Create creates a container file at fname, truncating anything already
// there. Until Close is called the data lives under fname + ".unfinished".
// The byte order is fixed for the lifetime of the file. If compress is true,
// every row-batch payload is compressed with zstd.
func Create(fname string, order binary.ByteOrder, compress bool) (*File, error) {
	unfinished := fname + UnfinishedSuffix

	fp, err := os.Create(unfinished)
	if err != nil { return nil, err }

	f := &File{
		fname: fname, unfinished: unfinished,
		f: fp, buf: bufio.NewWriter(fp),
		order: order, zstd: compress,
		payload: bytes.NewBuffer([]byte{ }),
	}

	flags := uint32(0)
	if compress { flags |= 1 }

	err = writeAll(f.buf, order,
		uint32(MagicNumber), uint32(Version), flags)
	if err != nil {
		fp.Close()
		return nil, err
	}

	return f, nil
}

// CreateTable registers a new table with the given name and columns and
// returns a handle to it. The handle is owned by the File: it must not be
// used after the File is closed. Table names must be unique within a file.
func (f *File) CreateTable(name string, cols []Column) (*Table, error) {
	if f.closed {
		return nil, fmt.Errorf("CreateTable('%s') was called on the " +
			"already-closed file %s.", name, f.fname)
	}
	for _, t := range f.tables {
		if t.name == name {
			return nil, fmt.Errorf("The file %s already contains a table " +
				"named '%s'.", f.fname, name)
		}
	}
	for i := range cols {
		switch cols[i].Type {
		case Float64Col, Int32Col, Float64ArrayCol, Int32ArrayCol:
		default:
			return nil, fmt.Errorf("Column '%s' of table '%s' has the type " +
				"'%s'. Only '%s', '%s', '%s', and '%s' are valid.",
				cols[i].Name, name, cols[i].Type,
				Float64Col, Int32Col, Float64ArrayCol, Int32ArrayCol,
			)
		}
	}

	t := &Table{
		file: f, id: uint32(len(f.tables)),
		name: name, cols: append([]Column{ }, cols...),
	}
	f.tables = append(f.tables, t)

	// Schema block: tag, table id, name, columns.
	err := writeAll(f.buf, f.order, blockSchema, t.id)
	if err != nil { return nil, err }
	if err := writeString(f.buf, f.order, name); err != nil { return nil, err }
	err = writeAll(f.buf, f.order, uint32(len(cols)))
	if err != nil { return nil, err }
	for i := range cols {
		err = writeString(f.buf, f.order, cols[i].Name)
		if err != nil { return nil, err }
		err = writeString(f.buf, f.order, cols[i].Type)
		if err != nil { return nil, err }
	}

	return t, nil
}

// Name returns the name the table was created with.
func (t *Table) Name() string { return t.name }

// NRows returns the number of rows committed to the table so far.
func (t *Table) NRows() int64 { return t.nRows }

// Append commits n rows as one batch. data holds one entry per column in
// schema order: []float64 for f64 columns, []int32 for i32 columns, and
// [][]float64 / [][]int32 for the array column types. Scalar slices must
// have length n, array slices must hold n per-row arrays.
func (t *Table) Append(n int, data []interface{}) error {
	f := t.file
	if f.closed {
		return fmt.Errorf("Append() was called on table '%s' of the " +
			"already-closed file %s.", t.name, f.fname)
	}
	if len(data) != len(t.cols) {
		return fmt.Errorf("Append() to table '%s' got %d columns of data, " +
			"but the table's schema has %d columns.",
			t.name, len(data), len(t.cols))
	}

	f.payload.Reset()
	for i := range t.cols {
		err := encodeColumn(f.payload, f.order, t.name, t.cols[i], n, data[i])
		if err != nil { return err }
	}

	err := writeAll(f.buf, f.order, blockRows, t.id, uint32(n))
	if err != nil { return err }

	raw := f.payload.Bytes()
	if f.zstd {
		f.zbuf, err = zstd.CompressLevel(f.zbuf, raw, 1)
		if err != nil { return err }
		err = writeAll(f.buf, f.order,
			uint64(len(raw)), uint64(len(f.zbuf)))
		if err != nil { return err }
		if _, err := f.buf.Write(f.zbuf); err != nil { return err }
	} else {
		err = writeAll(f.buf, f.order, uint64(len(raw)), uint64(len(raw)))
		if err != nil { return err }
		if _, err := f.buf.Write(raw); err != nil { return err }
	}

	t.nRows += int64(n)
	return nil
}

// encodeColumn appends the wire encoding of one column of an n-row batch to
// the payload buffer.
func encodeColumn(
	payload *bytes.Buffer, order binary.ByteOrder,
	table string, col Column, n int, data interface{},
) error {
	switch col.Type {
	case Float64Col:
		x, ok := data.([]float64)
		if !ok || len(x) != n {
			return columnShapeError(table, col, n, data)
		}
		return binary.Write(payload, order, x)
	case Int32Col:
		x, ok := data.([]int32)
		if !ok || len(x) != n {
			return columnShapeError(table, col, n, data)
		}
		return binary.Write(payload, order, x)
	case Float64ArrayCol:
		x, ok := data.([][]float64)
		if !ok || len(x) != n {
			return columnShapeError(table, col, n, data)
		}
		for i := range x {
			err := binary.Write(payload, order, uint32(len(x[i])))
			if err != nil { return err }
			if err := binary.Write(payload, order, x[i]); err != nil {
				return err
			}
		}
		return nil
	case Int32ArrayCol:
		x, ok := data.([][]int32)
		if !ok || len(x) != n {
			return columnShapeError(table, col, n, data)
		}
		for i := range x {
			err := binary.Write(payload, order, uint32(len(x[i])))
			if err != nil { return err }
			if err := binary.Write(payload, order, x[i]); err != nil {
				return err
			}
		}
		return nil
	}
	panic("(Supposedly) impossible column type configuration")
}

func columnShapeError(
	table string, col Column, n int, data interface{},
) error {
	return fmt.Errorf("Column '%s' of table '%s' has type '%s', but " +
		"Append() of a %d-row batch was given %T data of the wrong shape.",
		col.Name, table, col.Type, n, data)
}

// Checkpoint makes everything committed so far durable: the write buffer is
// flushed and the file is synced to disk. A crash after Checkpoint loses at
// most the batches appended since. Checkpoint is expensive, so callers
// should trade its frequency against how much work a crash may discard.
func (f *File) Checkpoint() error {
	if f.closed {
		return fmt.Errorf("Checkpoint() was called on the already-closed " +
			"file %s.", f.fname)
	}
	if err := f.buf.Flush(); err != nil { return err }
	return f.f.Sync()
}

// Close finalizes the file: it writes the end block with per-table row
// totals, syncs, closes the descriptor, and renames the file to its real
// name. Only after Close returns nil does the file exist under the name
// given to Create. Closing twice is an error.
func (f *File) Close() error {
	if f.closed {
		return fmt.Errorf("Close() was called twice on the file %s.", f.fname)
	}

	err := writeAll(f.buf, f.order, blockEnd, uint32(len(f.tables)))
	if err != nil {
		f.f.Close()
		return err
	}
	for _, t := range f.tables {
		if err := writeAll(f.buf, f.order, uint64(t.nRows)); err != nil {
			f.f.Close()
			return err
		}
	}

	if err := f.buf.Flush(); err != nil {
		f.f.Close()
		return err
	}
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return err
	}
	if err := f.f.Close(); err != nil { return err }

	f.closed = true
	return os.Rename(f.unfinished, f.fname)
}

// Abort closes the file without finalizing it and removes the unfinished
// file. It is for callers whose setup fails partway through: the file never
// appears under its real name and no stray ".unfinished" file is left
// behind. Aborting an already-closed file does nothing.
func (f *File) Abort() error {
	if f.closed { return nil }
	f.closed = true
	f.f.Close()
	return os.Remove(f.unfinished)
}

// writeAll writes each value in vs with binary.Write, stopping at the first
// error.
func writeAll(
	w *bufio.Writer, order binary.ByteOrder, vs ...interface{},
) error {
	for _, v := range vs {
		if err := binary.Write(w, order, v); err != nil { return err }
	}
	return nil
}

func writeString(w *bufio.Writer, order binary.ByteOrder, s string) error {
	if err := binary.Write(w, order, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}
