package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/model"
	"github.com/coffersTech/eventdeck/internal/storage"
)

// ScopeField is the custom field that ties an event to a scope in
// file-backed sources.
const ScopeField = "job_id"

// FileSource serves events from a local file, re-read on every fetch.
// .evsnap files are read as snapshots, .jsonl files line by line and any
// other file as a JSON document in the REST response shape.
type FileSource struct {
	Path string

	reader *storage.ColumnReader
	parser fastjson.ParserPool
	logger *zap.Logger
}

// NewFileSource creates a file source for path.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cr, err := storage.NewColumnReader()
	if err != nil {
		return nil, fmt.Errorf("init snapshot reader: %w", err)
	}
	return &FileSource{Path: path, reader: cr, logger: logger}, nil
}

// FetchEvents implements controller.Fetcher.
func (s *FileSource) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		events []model.Event
		err    error
	)
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".evsnap":
		events, err = s.reader.ReadSnapshot(s.Path)
	case ".jsonl", ".ndjson":
		events, err = s.readLines()
	default:
		events, err = s.readDocument()
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return filterScope(events, scope), nil
}

// Close releases the snapshot decoder.
func (s *FileSource) Close() error {
	s.reader.Close()
	return nil
}

func (s *FileSource) readDocument() ([]model.Event, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	events, skipped := eventsFromEnvelope(v)
	if skipped > 0 {
		s.logger.Warn("skipped malformed events", zap.String("file", s.Path), zap.Int("skipped", skipped))
	}
	return events, nil
}

func (s *FileSource) readLines() ([]model.Event, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := s.parser.Get()
	defer s.parser.Put(p)

	events := []model.Event{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		e, ok := decodeLine(p, sc.Bytes())
		if !ok {
			s.logger.Warn("skipped malformed line", zap.String("file", s.Path), zap.Int("line", line))
			continue
		}
		events = append(events, e)
	}
	return events, sc.Err()
}

// decodeLine decodes one JSONL record.
func decodeLine(p *fastjson.Parser, raw []byte) (model.Event, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return model.Event{}, false
	}
	v, err := p.ParseBytes(raw)
	if err != nil {
		return model.Event{}, false
	}
	e, err := decodeEvent(v)
	return e, err == nil
}

// filterScope keeps the events whose ScopeField equals scope. An empty scope
// keeps everything.
func filterScope(events []model.Event, scope string) []model.Event {
	if scope == "" {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if v, ok := events[i].Field(ScopeField); ok && v == scope {
			out = append(out, events[i])
		}
	}
	return out
}
