package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/eventdeck/internal/model"
)

var (
	ErrInvalidHeader  = errors.New("invalid .evsnap file header")
	ErrColumnMismatch = errors.New("column length mismatch")
)

// Footer summarizes a snapshot without decoding its columns.
type Footer struct {
	RowCount int
	MinTs    float64
	MaxTs    float64
}

// TimeRange restricts an iterator to events with MinTs <= Timestamp <= MaxTs.
// A zero bound is open.
type TimeRange struct {
	MinTs float64
	MaxTs float64
}

func (r TimeRange) contains(ts float64) bool {
	if r.MinTs != 0 && ts < r.MinTs {
		return false
	}
	if r.MaxTs != 0 && ts > r.MaxTs {
		return false
	}
	return true
}

// EventIterator provides a row-by-row view of a snapshot.
type EventIterator interface {
	Next() bool
	Event() model.Event
	Error() error
	Close() error
}

type ColumnReader struct {
	decoder *zstd.Decoder
}

func NewColumnReader() (*ColumnReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnReader{decoder: dec}, nil
}

// Close releases the decoder.
func (cr *ColumnReader) Close() {
	cr.decoder.Close()
}

// ReadFooter validates the header and returns the footer of filename.
func ReadFooter(filename string) (Footer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Footer{}, err
	}
	defer f.Close()
	return readFooter(f)
}

func readFooter(f *os.File) (Footer, error) {
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return Footer{}, ErrInvalidHeader
	}
	if !bytes.Equal(header, MagicHeader) {
		return Footer{}, ErrInvalidHeader
	}

	info, err := f.Stat()
	if err != nil {
		return Footer{}, err
	}
	if info.Size() < int64(len(MagicHeader)+footerSize) {
		return Footer{}, errors.New("file too small")
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		return Footer{}, err
	}
	return Footer{
		RowCount: int(binary.LittleEndian.Uint32(footer[0:4])),
		MinTs:    math.Float64frombits(binary.LittleEndian.Uint64(footer[4:12])),
		MaxTs:    math.Float64frombits(binary.LittleEndian.Uint64(footer[12:20])),
	}, nil
}

// NewIterator opens filename and decodes its columns. Snapshots whose
// footer range lies outside r yield no rows without decoding.
func (cr *ColumnReader) NewIterator(filename string, r TimeRange) (EventIterator, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	it := &FileIterator{reader: cr, file: f, rng: r, cursor: -1}
	if err := it.init(); err != nil {
		f.Close()
		return nil, err
	}
	return it, nil
}

type FileIterator struct {
	reader *ColumnReader
	file   *os.File
	rng    TimeRange

	timestamps []float64
	pids       []int64
	sourcePids []int64
	strCols    [7][]string

	rowCount int
	cursor   int
	curr     model.Event
	err      error
}

func (it *FileIterator) init() error {
	footer, err := readFooter(it.file)
	if err != nil {
		return err
	}
	it.rowCount = footer.RowCount
	if it.rowCount == 0 {
		return nil
	}

	// File-level skip based on the footer range
	if it.rng.MinTs != 0 && footer.MaxTs < it.rng.MinTs {
		it.rowCount = 0
		return nil
	}
	if it.rng.MaxTs != 0 && footer.MinTs > it.rng.MaxTs {
		it.rowCount = 0
		return nil
	}

	// Columns follow the header
	if _, err := it.file.Seek(int64(len(MagicHeader)), io.SeekStart); err != nil {
		return err
	}

	raw, err := it.reader.readAndDecompress(it.file)
	if err != nil {
		return fmt.Errorf("timestamp column: %w", err)
	}
	bits := bytesToInt64Slice(raw)
	it.timestamps = make([]float64, len(bits))
	for i, b := range bits {
		it.timestamps[i] = math.Float64frombits(uint64(b))
	}

	if raw, err = it.reader.readAndDecompress(it.file); err != nil {
		return fmt.Errorf("pid column: %w", err)
	}
	it.pids = bytesToInt64Slice(raw)

	if raw, err = it.reader.readAndDecompress(it.file); err != nil {
		return fmt.Errorf("sourcePid column: %w", err)
	}
	it.sourcePids = bytesToInt64Slice(raw)

	for i := range it.strCols {
		if raw, err = it.reader.readAndDecompress(it.file); err != nil {
			return fmt.Errorf("string column %d: %w", i, err)
		}
		if it.strCols[i], err = bytesToStringSlice(raw); err != nil {
			return fmt.Errorf("string column %d: %w", i, err)
		}
	}

	if len(it.timestamps) != it.rowCount || len(it.pids) != it.rowCount || len(it.sourcePids) != it.rowCount {
		return ErrColumnMismatch
	}
	for _, col := range it.strCols {
		if len(col) != it.rowCount {
			return ErrColumnMismatch
		}
	}
	return nil
}

func (it *FileIterator) Next() bool {
	for {
		it.cursor++
		if it.cursor >= it.rowCount || it.err != nil {
			return false
		}

		ts := it.timestamps[it.cursor]
		if !it.rng.contains(ts) {
			continue
		}

		e := model.Event{
			Timestamp:          ts,
			PID:                it.pids[it.cursor],
			SourcePID:          it.sourcePids[it.cursor],
			Severity:           it.strCols[0][it.cursor],
			FormattedTimestamp: it.strCols[1][it.cursor],
			SourceType:         it.strCols[2][it.cursor],
			HostName:           it.strCols[3][it.cursor],
			SourceHostname:     it.strCols[4][it.cursor],
			Message:            it.strCols[5][it.cursor],
		}
		if custom := it.strCols[6][it.cursor]; custom != "" {
			if err := json.Unmarshal([]byte(custom), &e.CustomFields); err != nil {
				it.err = fmt.Errorf("custom fields of row %d: %w", it.cursor, err)
				return false
			}
		}
		it.curr = e
		return true
	}
}

func (it *FileIterator) Event() model.Event {
	return it.curr
}

func (it *FileIterator) Error() error {
	return it.err
}

func (it *FileIterator) Close() error {
	return it.file.Close()
}

// ReadSnapshot reads every event of filename.
func (cr *ColumnReader) ReadSnapshot(filename string) ([]model.Event, error) {
	it, err := cr.NewIterator(filename, TimeRange{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	events := []model.Event{}
	for it.Next() {
		events = append(events, it.Event())
	}
	return events, it.Error()
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (cr *ColumnReader) readAndDecompress(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	return cr.decoder.DecodeAll(compressed, nil)
}

// bytesToInt64Slice converts a byte slice to []int64 (LittleEndian).
func bytesToInt64Slice(data []byte) []int64 {
	result := make([]int64, len(data)/8)
	for i := range result {
		result[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return result
}

// bytesToStringSlice decodes [Len uint32][Bytes]... into strings.
func bytesToStringSlice(data []byte) ([]string, error) {
	result := []string{}
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, io.ErrUnexpectedEOF
		}
		n := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if len(data) < n {
			return nil, io.ErrUnexpectedEOF
		}
		result = append(result, string(data[:n]))
		data = data[n:]
	}
	return result, nil
}
