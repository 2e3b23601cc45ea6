package aggregate

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/danmuck/barcoded/internal/calendar"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/danmuck/barcoded/internal/testutil/testlog"
	"github.com/spf13/afero"
)

const root = "/srv/barcodes"

func day(y uint16, m, d uint8) calendar.Date {
	return calendar.Date{Year: y, Month: m, Day: d}
}

func writeCount(t *testing.T, fsys afero.Fs, date, code string, content []byte) {
	t.Helper()
	dir := filepath.Join(root, date)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := afero.WriteFile(fsys, filepath.Join(dir, code), content, 0o644); err != nil {
		t.Fatalf("write %s/%s: %v", date, code, err)
	}
}

func TestAggregateSkipsAbsentDateDirectory(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "ABC123", []byte{1, 0, 0, 0})
	writeCount(t, fsys, "2024-05-03", "XYZ789", []byte{10, 0, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 3))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := []protocol.Row{
		{Date: day(2024, 5, 1), Code: "ABC123", Count: 1},
		{Date: day(2024, 5, 3), Code: "XYZ789", Count: 10},
	}
	if len(rows) != len(want) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d: got=%+v want=%+v", i, rows[i], want[i])
		}
	}
}

func TestAggregateStartAfterEndIsEmpty(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "ABC123", []byte{1, 0, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 3), day(2024, 5, 1))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected zero rows, got %+v", rows)
	}
}

func TestAggregateSingleDayRange(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-02-29", "LEAP", []byte{0x01, 0x02, 0x03, 0x04})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 2, 29), day(2024, 2, 29))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 0x04030201 {
		t.Fatalf("expected little-endian count 0x04030201, got %+v", rows)
	}
}

func TestAggregateAscendsAcrossMonthAndYear(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-01-01", "C", []byte{3, 0, 0, 0})
	writeCount(t, fsys, "2023-12-31", "B", []byte{2, 0, 0, 0})
	writeCount(t, fsys, "2023-11-30", "A", []byte{1, 0, 0, 0})
	writeCount(t, fsys, "2024-01-02", "OUTSIDE", []byte{9, 0, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2023, 11, 30), day(2024, 1, 1))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var codes []string
	for i, row := range rows {
		codes = append(codes, row.Code)
		if i > 0 && rows[i-1].Date.After(row.Date) {
			t.Fatalf("rows not ascending: %+v", rows)
		}
	}
	if strings.Join(codes, ",") != "A,B,C" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestAggregateMultipleCodesPerDate(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "111", []byte{1, 0, 0, 0})
	writeCount(t, fsys, "2024-05-01", "222", []byte{2, 0, 0, 0})
	writeCount(t, fsys, "2024-05-01", "333", []byte{0, 1, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 1))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	got := map[string]uint32{}
	for _, row := range rows {
		got[row.Code] = row.Count
	}
	if len(got) != 3 || got["111"] != 1 || got["222"] != 2 || got["333"] != 256 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestAggregateShortCountFileFailsWholeRange(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "GOOD", []byte{1, 0, 0, 0})
	writeCount(t, fsys, "2024-05-02", "BAD", []byte{1, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 3))
	if err == nil {
		t.Fatalf("expected error, got rows %+v", rows)
	}
	if rows != nil {
		t.Fatalf("expected no partial rows, got %+v", rows)
	}
	if !errors.Is(err, ErrCountSize) {
		t.Fatalf("expected ErrCountSize, got %v", err)
	}
	var entryErr *EntryError
	if !errors.As(err, &entryErr) {
		t.Fatalf("expected EntryError, got %T", err)
	}
	if entryErr.Entry != "BAD" || entryErr.Date != day(2024, 5, 2) {
		t.Fatalf("entry error does not name offender: %+v", entryErr)
	}
	if !strings.Contains(err.Error(), `"BAD"`) {
		t.Fatalf("error text should name entry: %v", err)
	}
}

func TestAggregateLongCountFileFails(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "LONG", []byte{1, 0, 0, 0, 0})

	_, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 1))
	if !errors.Is(err, ErrCountSize) {
		t.Fatalf("expected ErrCountSize, got %v", err)
	}
}

// deniedFs refuses to open one directory.
type deniedFs struct {
	afero.Fs
	denied string
}

func (d deniedFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == d.denied {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Open(name)
}

func TestAggregateListingFailureAborts(t *testing.T) {
	testlog.Start(t)

	base := afero.NewMemMapFs()
	writeCount(t, base, "2024-05-01", "GOOD", []byte{1, 0, 0, 0})
	writeCount(t, base, "2024-05-02", "HIDDEN", []byte{1, 0, 0, 0})
	fsys := deniedFs{Fs: base, denied: filepath.Join(root, "2024-05-02")}

	_, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 2))
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	var dirErr *DirError
	if !errors.As(err, &dirErr) || dirErr.Date != day(2024, 5, 2) {
		t.Fatalf("expected DirError for 2024-05-02, got %v", err)
	}
}

func TestAggregateOnHostFilesystem(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	dateDir := filepath.Join(dir, "2024-05-01")
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dateDir, "4006381333931"), []byte{42, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := New(dir).Aggregate(context.Background(), day(2024, 4, 30), day(2024, 5, 2))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "4006381333931" || rows[0].Count != 42 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestAggregateSubdirectoryEntryFails(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "2024-05-01", "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := New(dir).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 1))
	var entryErr *EntryError
	if !errors.As(err, &entryErr) || entryErr.Entry != "nested" {
		t.Fatalf("expected EntryError for nested dir, got %v", err)
	}
}

func TestAggregateUnreadableCountFileFails(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for this user")
	}
	testlog.Start(t)

	dir := t.TempDir()
	dateDir := filepath.Join(dir, "2024-05-01")
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dateDir, "LOCKED"), []byte{1, 0, 0, 0}, 0o000); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New(dir).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 1))
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestAggregateHonoursCancelledContext(t *testing.T) {
	testlog.Start(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWithFs(afero.NewMemMapFs(), root).Aggregate(ctx, day(2024, 5, 1), day(2024, 5, 3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAggregateStopsAtLastRepresentableDay(t *testing.T) {
	testlog.Start(t)

	last := day(^uint16(0), 12, 31)
	rows, err := NewWithFs(afero.NewMemMapFs(), root).Aggregate(context.Background(), day(^uint16(0), 12, 30), last)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestAggregateNonUTF8CodeFails(t *testing.T) {
	testlog.Start(t)

	fsys := afero.NewMemMapFs()
	writeCount(t, fsys, "2024-05-01", "GOOD", []byte{1, 0, 0, 0})
	writeCount(t, fsys, "2024-05-01", "AB\xffC", []byte{1, 0, 0, 0})

	rows, err := NewWithFs(fsys, root).Aggregate(context.Background(), day(2024, 5, 1), day(2024, 5, 1))
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no partial rows, got %+v", rows)
	}
	var entryErr *EntryError
	if !errors.As(err, &entryErr) || entryErr.Entry != "AB\xffC" {
		t.Fatalf("expected EntryError naming the code, got %v", err)
	}
}
