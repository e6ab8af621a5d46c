package models

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion is the current snapshot schema version. Bump it when a
// subject's field layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the schema-tagged field state of a subject at a point in
// time. Fields holds the subject's JSON field map, so a snapshot can be
// applied partially and older snapshots with fewer fields still decode.
type Snapshot struct {
	Kind    string                     `json:"kind"`
	Version int                        `json:"version"`
	Fields  map[string]json.RawMessage `json:"fields"`
}

// ParseSnapshot decodes the stored byte form of a snapshot. A failure here
// means the stored data is corrupt.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot data", ErrCorruptHistory)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	if snap.Kind == "" {
		return nil, fmt.Errorf("%w: snapshot missing kind tag", ErrCorruptHistory)
	}
	return &snap, nil
}

// Codec encodes subjects of one kind to snapshots and back. It is a pure
// transform with no storage concerns.
type Codec[T any] struct {
	Kind string
}

// Encode captures the subject's current field state. The subject itself is
// never mutated.
func (c Codec[T]) Encode(subject *T) (*Snapshot, error) {
	raw, err := json.Marshal(subject)
	if err != nil {
		return nil, fmt.Errorf("encoding %s snapshot: %w", c.Kind, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s snapshot fields: %w", c.Kind, err)
	}
	return &Snapshot{Kind: c.Kind, Version: SnapshotVersion, Fields: fields}, nil
}

// EncodeData is Encode followed by marshalling to the stored byte form.
func (c Codec[T]) EncodeData(subject *T) ([]byte, error) {
	snap, err := c.Encode(subject)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// EmptyData returns the stored form of a snapshot with no fields. It is the
// degraded value recorded when encoding the real state failed.
func (c Codec[T]) EmptyData() []byte {
	data, _ := json.Marshal(&Snapshot{Kind: c.Kind, Version: SnapshotVersion, Fields: map[string]json.RawMessage{}})
	return data
}

// CheckKind rejects snapshots whose schema tag belongs to another subject
// kind.
func (c Codec[T]) CheckKind(snap *Snapshot) error {
	if snap.Kind != c.Kind {
		return fmt.Errorf("%w: snapshot kind %q does not match %q", ErrCorruptHistory, snap.Kind, c.Kind)
	}
	return nil
}

// Decode reconstructs a full subject from a snapshot.
func (c Codec[T]) Decode(snap *Snapshot) (*T, error) {
	var subject T
	if err := c.Apply(snap, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Apply merges the fields present in the snapshot onto an existing subject.
// Fields the snapshot does not cover keep their current values.
func (c Codec[T]) Apply(snap *Snapshot, subject *T) error {
	if err := c.CheckKind(snap); err != nil {
		return err
	}
	raw, err := json.Marshal(snap.Fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	if err := json.Unmarshal(raw, subject); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	return nil
}
