package source

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/config"
	"github.com/coffersTech/eventdeck/internal/model"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// eventColumns is the column order read by ClickHouseSource. custom_fields
// holds a JSON object as a String column.
const eventColumns = "severity, timestamp, formatted_timestamp, source_type, host_name, " +
	"source_hostname, pid, source_pid, message, custom_fields"

// ClickHouseSource reads events from a ClickHouse table. The scope is matched
// against the job_id column.
type ClickHouseSource struct {
	conn   clickhouse.Conn
	table  string
	limit  int
	parser fastjson.ParserPool
	logger *zap.Logger
}

// NewClickHouseSource opens a connection using the native or HTTP protocol.
func NewClickHouseSource(cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !identRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", cfg.Table)
	}

	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	return &ClickHouseSource{
		conn:   conn,
		table:  cfg.Table,
		limit:  cfg.Limit,
		logger: logger,
	}, nil
}

// buildQuery returns the SELECT statement and its arguments for scope.
func buildQuery(table, scope string, limit int) (string, []interface{}) {
	q := "SELECT " + eventColumns + " FROM " + table
	var args []interface{}
	if scope != "" {
		q += " WHERE job_id = ?"
		args = append(args, scope)
	}
	q += " ORDER BY timestamp DESC"
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q, args
}

// FetchEvents implements controller.Fetcher.
func (s *ClickHouseSource) FetchEvents(ctx context.Context, scope string) ([]model.Event, error) {
	q, args := buildQuery(s.table, scope, s.limit)
	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var (
			e      model.Event
			custom string
		)
		if err := rows.Scan(&e.Severity, &e.Timestamp, &e.FormattedTimestamp, &e.SourceType,
			&e.HostName, &e.SourceHostname, &e.PID, &e.SourcePID, &e.Message, &custom); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		fields, err := s.decodeCustomFields(custom)
		if err != nil {
			s.logger.Warn("invalid custom_fields, dropped", zap.Error(err))
		}
		e.CustomFields = fields
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}
	return events, nil
}

func (s *ClickHouseSource) decodeCustomFields(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.Parse(raw)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("custom_fields must be an object, got %s", v.Type())
	}
	fields, _ := toInterface(v).(map[string]interface{})
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// Close closes the connection.
func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}
