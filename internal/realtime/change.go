// Package realtime delivers row-level change notifications for store tables.
// Subscribers pick a table and optionally one equality filter, the same way a
// dashboard client listens to "messages where project_id = X".
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind is the type of row change.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
)

// Change is one row-level notification. Record holds the row as JSON; Keys
// holds the column values subscribers may filter on.
type Change struct {
	Kind   Kind              `json:"kind"`
	Table  string            `json:"table"`
	Record json.RawMessage   `json:"record"`
	Keys   map[string]string `json:"keys,omitempty"`
}

// NewChange marshals record into a Change.
func NewChange(kind Kind, table string, record any, keys map[string]string) (Change, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Change{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Change{Kind: kind, Table: table, Record: raw, Keys: keys}, nil
}

// Decode unmarshals the record into dst.
func (c Change) Decode(dst any) error {
	return json.Unmarshal(c.Record, dst)
}

// Filter narrows a subscription to rows where Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// IsZero reports whether the filter matches every row.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}

// Subscription is a live stream of changes. Events is closed after Close or
// when the underlying transport drops the subscription.
type Subscription interface {
	Events() <-chan Change
	Close() error
}

// Hub publishes and fans out changes.
type Hub interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error)
}

// Topic names the channel carrying changes for table narrowed by filter.
func Topic(table string, filter Filter) string {
	if filter.IsZero() {
		return "realtime:" + table
	}
	return fmt.Sprintf("realtime:%s:%s=%s", table, filter.Column, filter.Value)
}

// topicsFor lists every topic a change must reach: the table-wide topic plus
// one per key, in a stable order.
func topicsFor(change Change) []string {
	topics := []string{Topic(change.Table, Filter{})}
	cols := make([]string, 0, len(change.Keys))
	for col := range change.Keys {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		topics = append(topics, Topic(change.Table, Eq(col, change.Keys[col])))
	}
	return topics
}
