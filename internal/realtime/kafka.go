// Package realtime delivers row-change events from the remote store to the
// sync engine. Changes arrive as JSON messages on a Kafka topic, in the
// shape emitted by Postgres database webhooks:
//
//	{"type":"UPDATE","table":"rooms","record":{...},"old_record":{...}}
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/njoerd114/roomsync/internal/model"
)

// MessageReader is the subset of [kafkago.Reader] the subscriber uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config selects the topic to consume.
type Config struct {
	Brokers []string
	Topic   string
	// GroupID enables consumer-group offsets. Without it every
	// subscription starts from the newest message.
	GroupID string
}

// KafkaSubscriber implements the engine's Subscriber on a Kafka topic.
// Each call to Subscribe opens its own reader and closes it on return.
type KafkaSubscriber struct {
	newReader func() MessageReader
	commit    bool
	log       *slog.Logger
}

// NewKafkaSubscriber returns a subscriber reading cfg.Topic.
func NewKafkaSubscriber(cfg Config, logger *slog.Logger) *KafkaSubscriber {
	newReader := func() MessageReader {
		rc := kafkago.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}
		if cfg.GroupID == "" {
			rc.StartOffset = kafkago.LastOffset
		}
		return kafkago.NewReader(rc)
	}
	return NewSubscriberWithReader(newReader, cfg.GroupID != "", logger)
}

// NewSubscriberWithReader builds a subscriber on a custom reader factory.
// commit must be false for readers without a consumer group.
func NewSubscriberWithReader(newReader func() MessageReader, commit bool, logger *slog.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{newReader: newReader, commit: commit, log: logger}
}

// Subscribe delivers change events for the given collections and kinds to
// handle, in topic order. An empty kinds filter accepts every kind.
// Malformed messages, other tables and other kinds are skipped. This method
// blocks until ctx is cancelled or the reader fails.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, collections []model.Collection, kinds []model.EventKind, handle func(model.ChangeEvent)) error {
	if len(collections) == 0 {
		return errors.New("subscribe: no collections")
	}

	r := s.newReader()
	defer func() {
		if err := r.Close(); err != nil {
			s.log.Warn("closing kafka reader", "error", err)
		}
	}()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetching change event: %w", err)
		}

		ev, err := Decode(msg.Value)
		switch {
		case err != nil:
			s.log.Warn("dropping malformed change event",
				"error", err, "partition", msg.Partition, "offset", msg.Offset)
		case slices.Contains(collections, ev.Collection) &&
			(len(kinds) == 0 || slices.Contains(kinds, ev.Kind)):
			s.log.Debug("change event received",
				"table", ev.Collection, "type", ev.Kind, "offset", msg.Offset)
			handle(ev)
		}

		if err := s.ack(ctx, r, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("committing change event", "error", err, "offset", msg.Offset)
		}
	}
}

func (s *KafkaSubscriber) ack(ctx context.Context, r MessageReader, msg kafkago.Message) error {
	if !s.commit {
		return nil
	}
	return r.CommitMessages(ctx, msg)
}

// Decode parses one webhook-shaped change message.
func Decode(data []byte) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("decoding change event: %w", err)
	}
	ev.New = nullToEmpty(ev.New)
	ev.Old = nullToEmpty(ev.Old)

	if ev.Collection == "" {
		return model.ChangeEvent{}, errors.New("change event without table")
	}
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		if len(ev.New) == 0 {
			return model.ChangeEvent{}, fmt.Errorf("%s event on %s without record", ev.Kind, ev.Collection)
		}
	case model.EventDelete:
		if len(ev.Old) == 0 {
			return model.ChangeEvent{}, fmt.Errorf("DELETE event on %s without old_record", ev.Collection)
		}
	default:
		return model.ChangeEvent{}, fmt.Errorf("unknown change type %q", ev.Kind)
	}
	return ev, nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
