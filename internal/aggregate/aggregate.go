// Package aggregate turns an inclusive date range into counter rows by
// scanning one directory per date under a root.
//
// Layout consumed: <root>/<YYYY-MM-DD>/<code>, where each code file holds
// exactly four bytes, a little-endian uint32 count. A missing date directory
// contributes no rows. Every other failure aborts the whole range so callers
// never receive partial data.
package aggregate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"unicode/utf8"

	"github.com/danmuck/barcoded/internal/calendar"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// CountSize is the exact byte length of a count file.
const CountSize = 4

var (
	ErrCountSize   = errors.New("aggregate: count file must contain 4 bytes")
	ErrInvalidCode = errors.New("aggregate: code file name is not valid UTF-8")
)

// DirError reports a date directory that exists but could not be listed.
type DirError struct {
	Date calendar.Date
	Path string
	Err  error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("aggregate: list %s (date %s): %v", e.Path, e.Date, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }

// EntryError reports one code file that could not be turned into a row.
type EntryError struct {
	Date  calendar.Date
	Entry string
	Path  string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("aggregate: entry %q (date %s, %s): %v", e.Entry, e.Date, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Aggregator reads counters from Root on Fs. It holds no mutable state and is
// safe to share between connections.
type Aggregator struct {
	Fs   afero.Fs
	Root string
}

// New returns an Aggregator over the host filesystem.
func New(root string) *Aggregator {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs returns an Aggregator over an arbitrary filesystem.
func NewWithFs(fsys afero.Fs, root string) *Aggregator {
	return &Aggregator{Fs: fsys, Root: root}
}

// Aggregate visits start..end inclusive, oldest first, and returns every row
// found. start after end yields no rows and no error. The context is checked
// between dates only.
func (a *Aggregator) Aggregate(ctx context.Context, start, end calendar.Date) ([]protocol.Row, error) {
	rows := make([]protocol.Row, 0)
	for date := start; calendar.Compare(date, end) <= 0; date = date.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dayRows, err := a.readDay(date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, dayRows...)

		// Next on the last representable day wraps the year to zero, which
		// would loop forever on an end date in year 65535.
		if date == (calendar.Date{Year: ^uint16(0), Month: 12, Day: 31}) {
			break
		}
	}
	return rows, nil
}

func (a *Aggregator) readDay(date calendar.Date) ([]protocol.Row, error) {
	dir := filepath.Join(a.Root, date.String())
	log.Debug().Str("path", dir).Msg("aggregate.read_dir")

	entries, err := afero.ReadDir(a.Fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &DirError{Date: date, Path: dir, Err: err}
	}

	rows := make([]protocol.Row, 0, len(entries))
	for _, entry := range entries {
		code := entry.Name()
		path := filepath.Join(dir, code)
		// Codes travel as CBOR text strings, which must be UTF-8.
		if !utf8.ValidString(code) {
			return nil, &EntryError{Date: date, Entry: code, Path: path, Err: ErrInvalidCode}
		}
		data, err := afero.ReadFile(a.Fs, path)
		if err != nil {
			return nil, &EntryError{Date: date, Entry: code, Path: path, Err: err}
		}
		if len(data) != CountSize {
			return nil, &EntryError{
				Date:  date,
				Entry: code,
				Path:  path,
				Err:   fmt.Errorf("%w, got %d", ErrCountSize, len(data)),
			}
		}
		rows = append(rows, protocol.Row{
			Date:  date,
			Code:  code,
			Count: binary.LittleEndian.Uint32(data),
		})
	}
	return rows, nil
}
