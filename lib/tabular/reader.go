package tabular

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"
)

// TableData holds everything read back from one table: its schema and the
// concatenation of all completely written row batches.
type TableData struct {
	Name  string
	Cols  []Column
	NRows int

	data map[string]interface{}
}

// Column returns the data of the named column: []float64, []int32,
// [][]float64, or [][]int32 depending on the column type.
func (td *TableData) Column(name string) (interface{}, error) {
	x, ok := td.data[name]
	if !ok {
		return nil, fmt.Errorf("The table '%s' has no column named '%s'. " +
			"Its columns are %v.", td.Name, name, columnNames(td.Cols))
	}
	return x, nil
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i := range cols { names[i] = cols[i].Name }
	return names
}

// Reader is the read-back side of the container format, used by analysis
// tooling and by recovery from crashed runs. Complete reports whether the
// end block was found: a file recovered from an ".unfinished" name will
// have Complete == false but still returns every fully written batch.
type Reader struct {
	Tables   []*TableData
	Complete bool
}

// Table returns the table with the given name.
func (r *Reader) Table(name string) (*TableData, error) {
	for _, td := range r.Tables {
		if td.Name == name { return td, nil }
	}
	names := make([]string, len(r.Tables))
	for i := range r.Tables { names[i] = r.Tables[i].Name }
	return nil, fmt.Errorf("The file contains no table named '%s'. It " +
		"only contains the tables %v.", name, names)
}

// Read reads a container file back into memory. Reading stops cleanly at a
// truncated tail, so it can be pointed at the ".unfinished" file of a
// crashed run to recover everything up to the last durable checkpoint.
func Read(fname string) (*Reader, error) {
	f, err := os.Open(fname)
	if err != nil { return nil, err }
	defer f.Close()

	order, err := checkFile(fname, f)
	if err != nil { return nil, err }

	var flags uint32
	if err := binary.Read(f, order, &flags); err != nil { return nil, err }
	compressed := flags&1 != 0

	r := &Reader{ }
	for {
		var tag uint32
		err := binary.Read(f, order, &tag)
		if truncated(err) { break }
		if err != nil { return nil, err }

		switch tag {
		case blockSchema:
			done, err := r.readSchema(f, order)
			if done { return r, nil }
			if err != nil { return nil, err }
		case blockRows:
			done, err := r.readRows(f, order, compressed)
			if done { return r, nil }
			if err != nil { return nil, err }
		case blockEnd:
			done, err := r.readEnd(f, order, fname)
			if done { return r, nil }
			if err != nil { return nil, err }
			r.Complete = true
			return r, nil
		default:
			return nil, fmt.Errorf("The file %s contains a block with the " +
				"unknown tag %d. Either the file is corrupted or it was " +
				"written by a newer format version.", fname, tag)
		}
	}

	return r, nil
}

// truncated returns true for the errors a torn tail produces.
func truncated(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// readSchema parses a schema block. done is true if the block was truncated
// and reading should stop with what was recovered so far.
func (r *Reader) readSchema(
	f *os.File, order binary.ByteOrder,
) (done bool, err error) {
	var id uint32
	if err := binary.Read(f, order, &id); truncated(err) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	if int(id) != len(r.Tables) {
		return false, fmt.Errorf("A schema block declares table id %d, but " +
			"%d tables were declared before it.", id, len(r.Tables))
	}

	name, err := readString(f, order)
	if truncated(err) { return true, nil }
	if err != nil { return false, err }

	var nCols uint32
	if err := binary.Read(f, order, &nCols); truncated(err) {
		return true, nil
	} else if err != nil {
		return false, err
	}

	td := &TableData{ Name: name, data: map[string]interface{}{ } }
	for i := uint32(0); i < nCols; i++ {
		colName, err := readString(f, order)
		if truncated(err) { return true, nil }
		if err != nil { return false, err }
		colType, err := readString(f, order)
		if truncated(err) { return true, nil }
		if err != nil { return false, err }

		td.Cols = append(td.Cols, Column{ colName, colType })
		switch colType {
		case Float64Col: td.data[colName] = []float64{ }
		case Int32Col: td.data[colName] = []int32{ }
		case Float64ArrayCol: td.data[colName] = [][]float64{ }
		case Int32ArrayCol: td.data[colName] = [][]int32{ }
		default:
			return false, fmt.Errorf("Column '%s' of table '%s' has the " +
				"unknown type '%s'.", colName, name, colType)
		}
	}

	r.Tables = append(r.Tables, td)
	return false, nil
}

// readRows parses one row-batch block and appends its rows to the table it
// belongs to.
func (r *Reader) readRows(
	f *os.File, order binary.ByteOrder, compressed bool,
) (done bool, err error) {
	var id, n uint32
	var rawLen, storedLen uint64
	if err := readAll(f, order, &id, &n, &rawLen, &storedLen); err != nil {
		if truncated(err) { return true, nil }
		return false, err
	}
	if int(id) >= len(r.Tables) {
		return false, fmt.Errorf("A row block refers to table id %d, but " +
			"only %d tables were declared.", id, len(r.Tables))
	}

	stored := make([]byte, storedLen)
	if _, err := io.ReadFull(f, stored); err != nil {
		if truncated(err) { return true, nil }
		return false, err
	}

	raw := stored
	if compressed {
		raw, err = zstd.Decompress(make([]byte, rawLen), stored)
		if err != nil { return false, err }
	}
	if uint64(len(raw)) != rawLen {
		return false, fmt.Errorf("A row block of table '%s' declares a " +
			"%d-byte payload, but %d bytes were recovered.",
			r.Tables[id].Name, rawLen, len(raw))
	}

	td := r.Tables[id]
	payload := bytes.NewReader(raw)
	for i := range td.Cols {
		err := decodeColumn(payload, order, td, td.Cols[i], int(n))
		if err != nil { return false, err }
	}
	td.NRows += int(n)

	return false, nil
}

// readEnd parses the end block and cross-checks the per-table row totals.
func (r *Reader) readEnd(
	f *os.File, order binary.ByteOrder, fname string,
) (done bool, err error) {
	var nTables uint32
	if err := binary.Read(f, order, &nTables); truncated(err) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	if int(nTables) != len(r.Tables) {
		return false, fmt.Errorf("The end block of %s declares %d tables, " +
			"but %d were found.", fname, nTables, len(r.Tables))
	}
	for i := uint32(0); i < nTables; i++ {
		var nRows uint64
		if err := binary.Read(f, order, &nRows); truncated(err) {
			return true, nil
		} else if err != nil {
			return false, err
		}
		if uint64(r.Tables[i].NRows) != nRows {
			return false, fmt.Errorf("The end block of %s declares %d rows " +
				"for table '%s', but %d were found. The file is corrupted.",
				fname, nRows, r.Tables[i].Name, r.Tables[i].NRows)
		}
	}
	return false, nil
}

// decodeColumn decodes one column of an n-row batch from the payload and
// appends it to the in-memory table.
func decodeColumn(
	payload *bytes.Reader, order binary.ByteOrder,
	td *TableData, col Column, n int,
) error {
	switch col.Type {
	case Float64Col:
		x := make([]float64, n)
		if err := binary.Read(payload, order, x); err != nil { return err }
		old, _ := td.data[col.Name].([]float64)
		td.data[col.Name] = append(old, x...)
	case Int32Col:
		x := make([]int32, n)
		if err := binary.Read(payload, order, x); err != nil { return err }
		old, _ := td.data[col.Name].([]int32)
		td.data[col.Name] = append(old, x...)
	case Float64ArrayCol:
		old, _ := td.data[col.Name].([][]float64)
		for i := 0; i < n; i++ {
			var m uint32
			if err := binary.Read(payload, order, &m); err != nil {
				return err
			}
			x := make([]float64, m)
			if err := binary.Read(payload, order, x); err != nil {
				return err
			}
			old = append(old, x)
		}
		td.data[col.Name] = old
	case Int32ArrayCol:
		old, _ := td.data[col.Name].([][]int32)
		for i := 0; i < n; i++ {
			var m uint32
			if err := binary.Read(payload, order, &m); err != nil {
				return err
			}
			x := make([]int32, m)
			if err := binary.Read(payload, order, x); err != nil {
				return err
			}
			old = append(old, x)
		}
		td.data[col.Name] = old
	default:
		panic("(Supposedly) impossible column type configuration")
	}
	return nil
}

// checkFile reads in the file's magic number and version number and makes
// sure this code can actually read it. If it can, the byte order is
// returned. Otherwise an error is returned.
func checkFile(fname string, f *os.File) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	err := binary.Read(f, order, &magicNumber)
	if err != nil { return nil, err }

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber: order = binary.BigEndian
	default:
		return order, fmt.Errorf("%s is not a container file. All " +
			"container files begin with either the 32-bit integer %x or " +
			"%x. This file begins with %x.",
			fname, uint32(MagicNumber), uint32(ReverseMagicNumber),
			magicNumber)
	}

	err = binary.Read(f, order, &version)
	if err != nil { return nil, err }
	if version > Version {
		return order, fmt.Errorf("The file %s was written with format " +
			"version %d, but this code only understands versions up to %d. " +
			"The file contains features which didn't exist when this code " +
			"was written.", fname, version, Version)
	}

	return order, nil
}

// readAll reads each value in vs with binary.Read, stopping at the first
// error.
func readAll(f io.Reader, order binary.ByteOrder, vs ...interface{}) error {
	for _, v := range vs {
		if err := binary.Read(f, order, v); err != nil { return err }
	}
	return nil
}

func readString(f io.Reader, order binary.ByteOrder) (string, error) {
	var n uint32
	if err := binary.Read(f, order, &n); err != nil { return "", err }
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil { return "", err }
	return string(b), nil
}
