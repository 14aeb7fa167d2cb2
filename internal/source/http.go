package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/model"
)

// HTTPSource fetches events from a dashboard REST backend. A scope is sent as
// the job_id query parameter; an empty scope hits the global endpoint, whose
// events object maps each scope to its events.
type HTTPSource struct {
	BaseURL    string
	ScopePath  string
	GlobalPath string
	Auth       string // optional Authorization header value
	Client     *http.Client

	parser fastjson.ParserPool
	logger *zap.Logger
}

// NewHTTPSource creates a REST source rooted at baseURL.
func NewHTTPSource(baseURL, scopePath, globalPath string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ScopePath:  scopePath,
		GlobalPath: globalPath,
		Client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchEvents implements controller.Fetcher.
func (s *HTTPSource) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	endpoint := s.BaseURL + s.GlobalPath
	if scope != "" {
		endpoint = s.BaseURL + s.ScopePath + "?" + url.Values{"job_id": {scope}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Auth != "" {
		req.Header.Set("Authorization", s.Auth)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	events, skipped := eventsFromEnvelope(v)
	if skipped > 0 {
		s.logger.Warn("skipped malformed events",
			zap.String("endpoint", endpoint), zap.Int("skipped", skipped))
	}
	return events, nil
}

// eventsFromEnvelope unwraps {"data":{"events":...}}, {"events":...} or a
// bare array. A map of scope to events is flattened in document order.
func eventsFromEnvelope(v *fastjson.Value) ([]model.Event, int) {
	payload := v
	if d := v.Get("data"); d != nil && d.Type() == fastjson.TypeObject {
		payload = d
	}
	if ev := payload.Get("events"); ev != nil {
		payload = ev
	} else if payload.Type() == fastjson.TypeObject {
		return []model.Event{}, 0
	}

	switch payload.Type() {
	case fastjson.TypeArray:
		return decodeEvents(payload)
	case fastjson.TypeObject:
		obj, _ := payload.Object()
		var (
			all     = []model.Event{}
			skipped int
		)
		obj.Visit(func(_ []byte, group *fastjson.Value) {
			if group.Type() != fastjson.TypeArray {
				skipped++
				return
			}
			events, n := decodeEvents(group)
			all = append(all, events...)
			skipped += n
		})
		return all, skipped
	case fastjson.TypeNull:
		return []model.Event{}, 0
	}
	return []model.Event{}, 1
}
