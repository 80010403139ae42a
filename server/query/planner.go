package query

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fileIDNamespace seeds deterministic file identities so repeated reads of
// one snapshot return matching file ids.
var fileIDNamespace = uuid.MustParse("c4a1e8d2-6b3f-41c9-8d5a-97e06f14ab28")

// ReadRequest is the body of a table query. Version and Timestamp are
// mutually exclusive; hints are advisory.
type ReadRequest struct {
	PredicateHints     []string `json:"predicateHints,omitempty"`
	JSONPredicateHints string   `json:"jsonPredicateHints,omitempty"`
	LimitHint          *int64   `json:"limitHint,omitempty"`
	Version            *int64   `json:"version,omitempty"`
	Timestamp          *string  `json:"timestamp,omitempty"`
}

// FileEntry is one physical object backing the planned table version
type FileEntry struct {
	Key             string
	ID              string
	Size            int64
	PartitionValues map[string]string
	Stats           string
}

// Plan is the resolved read: a concrete version and the files backing it
type Plan struct {
	Version   int64
	NumFiles  int
	TotalSize int64
	Files     []FileEntry
}

// Planner resolves table-read requests against the catalog and storage
type Planner struct {
	store  storage.ObjectStore
	logger zerolog.Logger
}

// NewPlanner creates a planner backed by the given object store
func NewPlanner(store storage.ObjectStore, logger zerolog.Logger) *Planner {
	return &Planner{
		store:  store,
		logger: logger.With().Str("component", "query-planner").Logger(),
	}
}

// Plan resolves the target version, enumerates its files, applies
// conservative partition pruning and the soft limit hint. Validation
// failures surface before any storage call.
func (p *Planner) Plan(ctx context.Context, tbl *catalog.Table, req *ReadRequest) (*Plan, error) {
	if req == nil {
		req = &ReadRequest{}
	}

	version, err := resolveVersion(tbl, req)
	if err != nil {
		return nil, err
	}

	files, err := p.enumerate(ctx, tbl, version)
	if err != nil {
		return nil, err
	}

	kept := PruneFiles(files, req.PredicateHints, req.JSONPredicateHints, tbl.PartitionColumns)

	if req.LimitHint != nil && *req.LimitHint >= 0 && int64(len(kept)) > *req.LimitHint {
		kept = kept[:*req.LimitHint]
	}

	plan := &Plan{Version: version, NumFiles: len(kept), Files: kept}
	for _, f := range kept {
		plan.TotalSize += f.Size
	}

	p.logger.Debug().
		Str("table", tbl.Share+"."+tbl.Schema+"."+tbl.Name).
		Int64("version", version).
		Int("candidates", len(files)).
		Int("planned", len(kept)).
		Msg("Table read planned")

	return plan, nil
}

// resolveVersion applies the version/timestamp rules: mutually exclusive,
// defaulting to the current version, timestamps resolved against the
// recorded version history.
func resolveVersion(tbl *catalog.Table, req *ReadRequest) (int64, error) {
	if req.Version != nil && req.Timestamp != nil {
		return 0, errors.New(ErrConflictingVersion, "version and timestamp must not both be set")
	}

	if req.Version != nil {
		v := *req.Version
		if v < 0 {
			return 0, errors.Newf(ErrInvalidVersion, "version %d must not be negative", v)
		}
		if v == tbl.CurrentVersion || tbl.VersionAt(v) != nil {
			return v, nil
		}
		return 0, errors.Newf(ErrVersionNotFound, "version %d does not exist for table %s", v, tbl.Name)
	}

	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidTimestamp, err, "timestamp %q is not RFC3339", *req.Timestamp)
		}
		if len(tbl.History) == 0 {
			return 0, errors.Newf(ErrTimestampOutOfRange, "table %s has no recorded version history", tbl.Name)
		}
		if ts.Before(tbl.History[0].Timestamp) {
			return 0, errors.Newf(ErrTimestampOutOfRange, "timestamp %q precedes the first version of table %s", *req.Timestamp, tbl.Name)
		}
		resolved := tbl.History[0].Version
		for _, tv := range tbl.History {
			if tv.Timestamp.After(ts) {
				break
			}
			resolved = tv.Version
		}
		return resolved, nil
	}

	return tbl.CurrentVersion, nil
}

// enumerate returns the file entries backing the given version: the pinned
// catalog list when one exists, otherwise a live listing for the current
// version. Historical versions without a pinned list cannot be served.
func (p *Planner) enumerate(ctx context.Context, tbl *catalog.Table, version int64) ([]FileEntry, error) {
	if tv := tbl.VersionAt(version); tv != nil && len(tv.Files) > 0 {
		entries := make([]FileEntry, 0, len(tv.Files))
		for _, f := range tv.Files {
			entries = append(entries, FileEntry{
				Key:             f.Key,
				ID:              fileID(tbl.Bucket(), f.Key),
				Size:            f.Size,
				PartitionValues: partitionValuesFor(f.PartitionValues, f.Key, tbl.Prefix(), tbl.PartitionColumns),
				Stats:           f.Stats,
			})
		}
		return entries, nil
	}

	if version != tbl.CurrentVersion {
		return nil, errors.Newf(ErrVersionNotMaterialized, "version %d of table %s has no recorded file list", version, tbl.Name)
	}

	prefix := tbl.Prefix()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := p.store.List(ctx, tbl.Bucket(), prefix)
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, FileEntry{
			Key:             obj.Key,
			ID:              fileID(tbl.Bucket(), obj.Key),
			Size:            obj.Size,
			PartitionValues: partitionValuesFor(nil, obj.Key, tbl.Prefix(), tbl.PartitionColumns),
		})
	}
	return entries, nil
}

// partitionValuesFor returns the pinned values when present, otherwise the
// hive-style key=value segments parsed from the object key. Only declared
// partition columns are reported.
func partitionValuesFor(pinned map[string]string, key, prefix string, columns []string) map[string]string {
	values := make(map[string]string, len(columns))
	if pinned != nil {
		for _, col := range columns {
			if v, ok := pinned[col]; ok {
				values[col] = v
			}
		}
		return values
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	for _, segment := range strings.Split(rel, "/") {
		idx := strings.Index(segment, "=")
		if idx <= 0 {
			continue
		}
		col := segment[:idx]
		if !containsColumn(columns, col) {
			continue
		}
		value := segment[idx+1:]
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		values[col] = value
	}
	return values
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func fileID(bucket, key string) string {
	return uuid.NewSHA1(fileIDNamespace, []byte(bucket+"/"+key)).String()
}
