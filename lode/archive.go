// Package lode archives finished run reports in a Lode dataset.
//
// Each report is written as one JSONL record under the Hive layout
// day/session_id, so a session's history can be listed without reading
// every snapshot. Storage failures are returned as *StorageError and can
// be classified with errors.Is against the sentinels in this package.
package lode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/crossflow/runtime"
	"github.com/pithecene-io/crossflow/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "crossflow"

// RecordKindReport marks run report records.
const RecordKindReport = "run_report"

// Backend kinds accepted by Open.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// ErrNoReports is returned when no matching report exists in the dataset.
var ErrNoReports = errors.New("no archived reports found")

// Config selects and configures an archive backend.
type Config struct {
	// Backend is one of BackendFS, BackendS3, BackendMemory.
	Backend string
	// Dataset is the Lode dataset ID. Empty means DefaultDataset.
	Dataset string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// S3 carries region and endpoint overrides for the s3 backend.
	// Bucket and Prefix are taken from Path when empty.
	S3 S3Config
}

// DeriveDay computes the partition day from a report's finish time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Archive reads and writes run reports.
type Archive struct {
	dataset lode.Dataset
	name    string
}

var _ runtime.Archiver = (*Archive)(nil)

// Open creates an archive for the configured backend.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}

	switch cfg.Backend {
	case BackendFS:
		if cfg.Path == "" {
			return nil, errors.New("fs archive requires a path")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, WrapInitError(err, cfg.Dataset)
		}
		return New(cfg.Dataset, lode.NewFSFactory(cfg.Path))
	case BackendS3:
		s3cfg := cfg.S3
		if s3cfg.Bucket == "" {
			s3cfg.Bucket, s3cfg.Prefix = ParseS3Path(cfg.Path)
		}
		factory, err := NewS3Factory(ctx, s3cfg)
		if err != nil {
			return nil, WrapInitError(err, cfg.Dataset)
		}
		return New(cfg.Dataset, factory)
	case BackendMemory:
		return New(cfg.Dataset, lode.NewMemoryFactory())
	default:
		return nil, fmt.Errorf("unknown archive backend %q (must be fs, s3 or memory)", cfg.Backend)
	}
}

// New creates an archive over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func New(dataset string, factory lode.StoreFactory) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("day", "session_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Archive{dataset: ds, name: dataset}, nil
}

// Dataset returns the dataset ID.
func (a *Archive) Dataset() string {
	return a.name
}

// Put writes one report record.
func (a *Archive) Put(ctx context.Context, report *runtime.Report) error {
	if report == nil {
		return errors.New("nil report")
	}
	if report.SessionID == "" {
		return errors.New("report has no session id")
	}

	record, err := toRecord(report)
	if err != nil {
		return err
	}

	path := a.name + "/day=" + record["day"].(string) + "/session_id=" + report.SessionID
	if _, err := a.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// Latest returns the newest report, restricted to sessionID when non-empty.
// Returns ErrNoReports if none exist.
func (a *Archive) Latest(ctx context.Context, sessionID string) (*runtime.Report, error) {
	reports, err := a.Recent(ctx, sessionID, 1)
	if err != nil {
		return nil, err
	}
	return reports[0], nil
}

// Recent returns up to limit reports, newest first, restricted to sessionID
// when non-empty. A non-positive limit returns every match.
// Returns ErrNoReports if none exist.
func (a *Archive) Recent(ctx context.Context, sessionID string, limit int) ([]*runtime.Report, error) {
	snapshots, err := a.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, a.name+"/snapshots")
	}

	var out []*runtime.Report
	// Snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}

		data, err := a.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", a.name, snap.ID))
		}

		// Records within a snapshot are in write order; newest last.
		for j := len(data) - 1; j >= 0; j-- {
			record, ok := data[j].(map[string]any)
			if !ok || record["record_kind"] != RecordKindReport {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			report, err := fromRecord(record)
			if err != nil {
				return nil, fmt.Errorf("decode report in snapshot %s: %w", snap.ID, err)
			}
			out = append(out, report)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoReports
	}
	return out, nil
}

// Close releases archive resources.
func (a *Archive) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// toRecord flattens a report into a storage record carrying the partition
// keys and a record_kind discriminator.
func toRecord(report *runtime.Report) (map[string]any, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to flatten report: %w", err)
	}

	finished := report.FinishedAt
	if finished.IsZero() {
		finished = report.StartedAt
	}
	record["record_kind"] = RecordKindReport
	record["contract_version"] = types.ContractVersion
	record["day"] = DeriveDay(finished)
	return record, nil
}

func fromRecord(record map[string]any) (*runtime.Report, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var report runtime.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so session_id=a does not match session_id=ab.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
