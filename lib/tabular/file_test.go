package tabular

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/Triple-S/smash/lib/eq"
)

func testColumns() []Column {
	return []Column{
		{ "t", Float64Col }, { "pdgcode", Int32Col },
		{ "p", Float64ArrayCol },
	}
}

func testAppend(t *testing.T, tab *Table, n int, scale float64) {
	t.Helper()

	ts, codes := make([]float64, n), make([]int32, n)
	ps := make([][]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = scale * float64(i)
		codes[i] = int32(i) + 100
		ps[i] = []float64{ scale, -scale, float64(i) }
	}

	err := tab.Append(n, []interface{}{ ts, codes, ps })
	if err != nil {
		t.Fatalf("Expected Append() to succeed, got: %v", err)
	}
}

func roundTrip(t *testing.T, compress bool) {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "round_trip.evt")

	f, err := Create(fname, binary.LittleEndian, compress)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}

	tab, err := f.CreateTable("particles", testColumns())
	if err != nil {
		t.Fatalf("Expected CreateTable() to succeed, got: %v", err)
	}

	testAppend(t, tab, 3, 1.0)
	testAppend(t, tab, 2, 2.0)
	if tab.NRows() != 5 {
		t.Errorf("Expected NRows() = 5, got %d.", tab.NRows())
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Expected Close() to succeed, got: %v", err)
	}

	r, err := Read(fname)
	if err != nil {
		t.Fatalf("Expected Read() to succeed, got: %v", err)
	}
	if !r.Complete {
		t.Errorf("Expected a closed file to read back as complete.")
	}

	td, err := r.Table("particles")
	if err != nil {
		t.Fatalf("Expected the 'particles' table to exist, got: %v", err)
	}
	if td.NRows != 5 {
		t.Errorf("Expected 5 rows, got %d.", td.NRows)
	}

	ts, _ := td.Column("t")
	if !eq.Generic(ts, []float64{ 0, 1, 2, 0, 2 }) {
		t.Errorf("Expected t = [0 1 2 0 2], got %v.", ts)
	}
	codes, _ := td.Column("pdgcode")
	if !eq.Generic(codes, []int32{ 100, 101, 102, 100, 101 }) {
		t.Errorf("Expected pdgcode = [100 101 102 100 101], got %v.", codes)
	}
	ps, _ := td.Column("p")
	expPs := [][]float64{
		{ 1, -1, 0 }, { 1, -1, 1 }, { 1, -1, 2 },
		{ 2, -2, 0 }, { 2, -2, 1 },
	}
	if !eq.Generic(ps, expPs) {
		t.Errorf("Expected p = %v, got %v.", expPs, ps)
	}
}

func TestRoundTrip(t *testing.T) {
	roundTrip(t, false)
}

func TestRoundTripCompressed(t *testing.T) {
	roundTrip(t, true)
}

func TestUnfinishedRecovery(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "crashed.evt")

	f, err := Create(fname, binary.LittleEndian, false)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}
	tab, err := f.CreateTable("particles", testColumns())
	if err != nil {
		t.Fatalf("Expected CreateTable() to succeed, got: %v", err)
	}

	testAppend(t, tab, 3, 1.0)
	if err := f.Checkpoint(); err != nil {
		t.Fatalf("Expected Checkpoint() to succeed, got: %v", err)
	}

	// This batch is never made durable: the "crash" happens before the
	// next checkpoint.
	testAppend(t, tab, 2, 2.0)

	if _, err := os.Stat(fname); !os.IsNotExist(err) {
		t.Errorf("Expected the final name to not exist before Close().")
	}

	r, err := Read(fname + UnfinishedSuffix)
	if err != nil {
		t.Fatalf("Expected Read() of the unfinished file to succeed, " +
			"got: %v", err)
	}
	if r.Complete {
		t.Errorf("Expected an unfinished file to read back as incomplete.")
	}

	td, err := r.Table("particles")
	if err != nil {
		t.Fatalf("Expected the 'particles' table to exist, got: %v", err)
	}
	if td.NRows != 3 {
		t.Errorf("Expected the 3 checkpointed rows to be recovered, " +
			"got %d rows.", td.NRows)
	}
}

func TestCloseRenames(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "renamed.evt")

	f, err := Create(fname, binary.LittleEndian, false)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}

	if _, err := os.Stat(fname + UnfinishedSuffix); err != nil {
		t.Errorf("Expected the unfinished file to exist before Close().")
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Expected Close() to succeed, got: %v", err)
	}

	if _, err := os.Stat(fname); err != nil {
		t.Errorf("Expected the final file to exist after Close().")
	}
	if _, err := os.Stat(fname + UnfinishedSuffix); !os.IsNotExist(err) {
		t.Errorf("Expected the unfinished file to be gone after Close().")
	}

	if err := f.Close(); err == nil {
		t.Errorf("Expected a second Close() to fail.")
	}
}

func TestAbortRemovesUnfinishedFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "aborted.evt")

	f, err := Create(fname, binary.LittleEndian, false)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}
	tab, err := f.CreateTable("particles", testColumns())
	if err != nil {
		t.Fatalf("Expected CreateTable() to succeed, got: %v", err)
	}
	testAppend(t, tab, 3, 1.0)

	if err := f.Abort(); err != nil {
		t.Fatalf("Expected Abort() to succeed, got: %v", err)
	}

	if _, err := os.Stat(fname); !os.IsNotExist(err) {
		t.Errorf("Expected no finalized file after Abort().")
	}
	if _, err := os.Stat(fname + UnfinishedSuffix); !os.IsNotExist(err) {
		t.Errorf("Expected the unfinished file to be removed by Abort().")
	}

	// Abort after Close (or a second Abort) is a no-op.
	if err := f.Abort(); err != nil {
		t.Errorf("Expected a second Abort() to do nothing, got: %v", err)
	}
	if err := tab.Append(1, []interface{}{
		[]float64{ 1 }, []int32{ 2 }, [][]float64{ { 3 } },
	}); err == nil {
		t.Errorf("Expected Append() after Abort() to fail.")
	}
}

func TestAppendShapeChecks(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "shapes.evt")

	f, err := Create(fname, binary.LittleEndian, false)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}
	tab, err := f.CreateTable("particles", testColumns())
	if err != nil {
		t.Fatalf("Expected CreateTable() to succeed, got: %v", err)
	}

	// Wrong column count.
	err = tab.Append(1, []interface{}{ []float64{ 1 } })
	if err == nil {
		t.Errorf("Expected Append() with missing columns to fail.")
	}

	// Wrong type for the i32 column.
	err = tab.Append(1, []interface{}{
		[]float64{ 1 }, []float64{ 2 }, [][]float64{ { 3 } },
	})
	if err == nil {
		t.Errorf("Expected Append() with a mistyped column to fail.")
	}

	// Wrong length.
	err = tab.Append(2, []interface{}{
		[]float64{ 1 }, []int32{ 2 }, [][]float64{ { 3 } },
	})
	if err == nil {
		t.Errorf("Expected Append() with short columns to fail.")
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Expected Close() to succeed, got: %v", err)
	}
}

func TestCreateTableChecks(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tables.evt")

	f, err := Create(fname, binary.LittleEndian, false)
	if err != nil {
		t.Fatalf("Expected Create() to succeed, got: %v", err)
	}

	if _, err := f.CreateTable("particles", testColumns()); err != nil {
		t.Fatalf("Expected CreateTable() to succeed, got: %v", err)
	}
	if _, err := f.CreateTable("particles", testColumns()); err == nil {
		t.Errorf("Expected a duplicate table name to fail.")
	}
	badCols := []Column{ { "t", "f16" } }
	if _, err := f.CreateTable("bad", badCols); err == nil {
		t.Errorf("Expected an unknown column type to fail.")
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Expected Close() to succeed, got: %v", err)
	}
}

func TestReadRejectsForeignFiles(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "not_a_container")
	err := os.WriteFile(fname, []byte("definitely not a container file"), 0666)
	if err != nil {
		t.Fatalf("Expected writing the test file to succeed, got: %v", err)
	}

	if _, err := Read(fname); err == nil {
		t.Errorf("Expected Read() of a foreign file to fail.")
	}
}

func TestCreateFailsOnBadPath(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "missing_dir", "out.evt")
	if _, err := Create(fname, binary.LittleEndian, false); err == nil {
		t.Errorf("Expected Create() in a missing directory to fail.")
	}
}
