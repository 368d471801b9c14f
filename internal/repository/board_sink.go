package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	pkgkafka "FinScan/pkg/kafka"
	"FinScan/pkg/logger"
)

// BoardMessage is one board row as published downstream.
type BoardMessage struct {
	ScanID string `json:"scan_id"`
	Rank   int    `json:"rank"`
	TS     int64  `json:"ts"`
	models.BoardRow
}

func boardMessages(b *models.Board) []BoardMessage {
	out := make([]BoardMessage, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = BoardMessage{ScanID: b.ScanID, Rank: i + 1, TS: b.Timestamp.Unix(), BoardRow: r}
	}
	return out
}

// BatchPublisher is the part of the Kafka producer the board sink needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaBoardSink publishes one message per board row, keyed by symbol.
type KafkaBoardSink struct {
	producer BatchPublisher
	topic    string
}

func NewKafkaBoardSink(producer BatchPublisher, topic string) *KafkaBoardSink {
	return &KafkaBoardSink{producer: producer, topic: topic}
}

func (s *KafkaBoardSink) Publish(ctx context.Context, b *models.Board) error {
	if b == nil || len(b.Rows) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(b.Rows))
	for _, m := range boardMessages(b) {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(m.Symbol), Value: m})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return fmt.Errorf("kafka publish board: %w", err)
	}
	return nil
}

// Close is a no-op; the producer is shared with the log collector and is
// closed by its owner after the last log batch.
func (s *KafkaBoardSink) Close() error { return nil }

// BoardRowsSchema returns the DDL for the board history table.
func BoardRowsSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.board_rows (
    ts DateTime,
    scan_id String,
    rank UInt16,
    symbol LowCardinality(String),
    tier_grade LowCardinality(String),
    price Float64,
    trigger Float64,
    pct_to_trigger String,
    vwap_status LowCardinality(String),
    volume_vs_req String,
    volume_ratio Float64,
    catalyst String,
    note String,
    score Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (ts, rank)
TTL ts + INTERVAL 90 DAY`, database),
	}
}

// ClickHouseBoardSink appends board rows to <database>.board_rows.
type ClickHouseBoardSink struct {
	db    *sql.DB
	table string
}

func NewClickHouseBoardSink(db *sql.DB, database string) *ClickHouseBoardSink {
	return &ClickHouseBoardSink{db: db, table: database + ".board_rows"}
}

const boardRowColumns = "ts, scan_id, rank, symbol, tier_grade, price, trigger, pct_to_trigger, vwap_status, volume_vs_req, volume_ratio, catalyst, note, score"

// Publish inserts all rows in a single multi-row statement.
func (s *ClickHouseBoardSink) Publish(ctx context.Context, b *models.Board) error {
	if b == nil || len(b.Rows) == 0 {
		return nil
	}
	q, args := s.insertQuery(b)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("clickhouse insert board: %w", err)
	}
	return nil
}

func (s *ClickHouseBoardSink) insertQuery(b *models.Board) (string, []interface{}) {
	const placeholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	values := make([]string, 0, len(b.Rows))
	args := make([]interface{}, 0, len(b.Rows)*14)
	ts := b.Timestamp.UTC().Truncate(time.Second)
	for _, m := range boardMessages(b) {
		values = append(values, placeholders)
		args = append(args,
			ts, m.ScanID, uint16(m.Rank), m.Symbol, m.TierGrade, m.Price, m.Trigger,
			m.PctToTrigger, m.VWAPStatus, m.VolumeVsReq, m.VolumeRatio, m.Catalyst, m.Note, m.Score,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, boardRowColumns, strings.Join(values, ","))
	return q, args
}

// Close is a no-op; the connection pool is owned by pkg/clickhouse.
func (s *ClickHouseBoardSink) Close() error { return nil }

// FanoutSink forwards each board to every sink and joins their errors.
type FanoutSink struct {
	sinks []drepo.BoardSink
	log   *logger.Logger
}

func NewFanoutSink(log *logger.Logger, sinks ...drepo.BoardSink) *FanoutSink {
	if log == nil {
		log = logger.Nop()
	}
	out := make([]drepo.BoardSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &FanoutSink{sinks: out, log: log}
}

// Len reports how many sinks are attached.
func (f *FanoutSink) Len() int { return len(f.sinks) }

func (f *FanoutSink) Publish(ctx context.Context, b *models.Board) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, b); err != nil {
			f.log.Warn("board sink publish failed", logger.String("sink", fmt.Sprintf("%T", s)), logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutSink) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ drepo.BoardSink = (*KafkaBoardSink)(nil)
	_ drepo.BoardSink = (*ClickHouseBoardSink)(nil)
	_ drepo.BoardSink = (*FanoutSink)(nil)
)
