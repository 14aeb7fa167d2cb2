package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/coffersTech/eventdeck/internal/model"
)

// MagicHeader starts every .evsnap file.
var MagicHeader = []byte("EVSNAP01")

// footerSize is RowCount(4) + MinTs(8) + MaxTs(8).
const footerSize = 20

// ColumnWriter writes event snapshots: a header, one zstd block per column
// and a footer with the row count and timestamp range.
type ColumnWriter struct {
	encoder *zstd.Encoder
}

func NewColumnWriter() (*ColumnWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnWriter{encoder: enc}, nil
}

// Close releases the encoder.
func (cw *ColumnWriter) Close() error {
	return cw.encoder.Close()
}

// WriteSnapshot writes events to filename. The file is written next to its
// destination and renamed into place, so readers never see a partial file.
func (cw *ColumnWriter) WriteSnapshot(filename string, events []model.Event) error {
	var buf bytes.Buffer
	buf.Write(MagicHeader)

	minTs, maxTs := math.Inf(1), math.Inf(-1)
	if len(events) == 0 {
		minTs, maxTs = 0, 0
	}

	ts := make([]uint64, len(events))
	pids := make([]int64, len(events))
	srcPids := make([]int64, len(events))
	cols := make([][]string, 7)
	for i := range cols {
		cols[i] = make([]string, len(events))
	}

	for i := range events {
		e := &events[i]
		ts[i] = math.Float64bits(e.Timestamp)
		minTs = math.Min(minTs, e.Timestamp)
		maxTs = math.Max(maxTs, e.Timestamp)
		pids[i] = e.PID
		srcPids[i] = e.SourcePID

		cols[0][i] = e.Severity
		cols[1][i] = e.FormattedTimestamp
		cols[2][i] = e.SourceType
		cols[3][i] = e.HostName
		cols[4][i] = e.SourceHostname
		cols[5][i] = e.Message
		if len(e.CustomFields) > 0 {
			b, err := json.Marshal(e.CustomFields)
			if err != nil {
				return fmt.Errorf("encode custom fields of row %d: %w", i, err)
			}
			cols[6][i] = string(b)
		}
	}

	cw.writeUint64Col(&buf, ts)
	cw.writeInt64Col(&buf, pids)
	cw.writeInt64Col(&buf, srcPids)
	for _, col := range cols {
		cw.writeStringCol(&buf, col)
	}
	writeFooter(&buf, uint32(len(events)), minTs, maxTs)

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".evsnap-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

func (cw *ColumnWriter) writeUint64Col(buf *bytes.Buffer, data []uint64) {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[i*8:], v)
	}
	cw.compressAndWrite(buf, raw)
}

func (cw *ColumnWriter) writeInt64Col(buf *bytes.Buffer, data []int64) {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	cw.compressAndWrite(buf, raw)
}

// writeStringCol serializes [Len uint32][Bytes]... per value.
func (cw *ColumnWriter) writeStringCol(buf *bytes.Buffer, data []string) {
	var raw bytes.Buffer
	var lenBuf [4]byte
	for _, s := range data {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		raw.Write(lenBuf[:])
		raw.WriteString(s)
	}
	cw.compressAndWrite(buf, raw.Bytes())
}

// compressAndWrite appends [CompressedSize uint32][zstd block].
func (cw *ColumnWriter) compressAndWrite(buf *bytes.Buffer, raw []byte) {
	compressed := cw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(compressed)))
	buf.Write(size[:])
	buf.Write(compressed)
}

func writeFooter(buf *bytes.Buffer, rowCount uint32, minTs, maxTs float64) {
	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[0:4], rowCount)
	binary.LittleEndian.PutUint64(footer[4:12], math.Float64bits(minTs))
	binary.LittleEndian.PutUint64(footer[12:20], math.Float64bits(maxTs))
	buf.Write(footer[:])
}
