package catalog

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultTableFormat = "parquet"

// tableIDNamespace seeds deterministic table and file identities so that
// repeated loads of the same catalog agree on ids.
var tableIDNamespace = uuid.MustParse("8f2c7f2e-1d4b-4c1a-9a6e-3d0a51b24e7c")

// catalogFile is the YAML document structure for the catalog definition
type catalogFile struct {
	Shares []shareEntry `yaml:"shares"`
}

type shareEntry struct {
	Name    string        `yaml:"name"`
	ID      string        `yaml:"id"`
	Schemas []schemaEntry `yaml:"schemas"`
}

type schemaEntry struct {
	Name   string       `yaml:"name"`
	Tables []tableEntry `yaml:"tables"`
}

type tableEntry struct {
	Name             string            `yaml:"name"`
	ID               string            `yaml:"id"`
	Location         string            `yaml:"location"`
	Format           string            `yaml:"format"`
	SchemaString     string            `yaml:"schema_string"`
	PartitionColumns []string          `yaml:"partition_columns"`
	Configuration    map[string]string `yaml:"configuration"`
	CurrentVersion   int64             `yaml:"current_version"`
	History          []versionEntry    `yaml:"history"`
}

type versionEntry struct {
	Version   int64       `yaml:"version"`
	Timestamp string      `yaml:"timestamp"` // RFC3339
	Files     []fileEntry `yaml:"files"`
}

type fileEntry struct {
	Key             string            `yaml:"key"`
	Size            int64             `yaml:"size"`
	PartitionValues map[string]string `yaml:"partition_values"`
	Stats           string            `yaml:"stats"`
}

// Snapshot is an immutable view of the catalog. All lookups on a Snapshot
// observe the same state; a Store swap never mutates an existing Snapshot.
type Snapshot struct {
	id       string
	shares   []Share
	schemas  map[string][]Schema
	tables   map[string][]*Table
	byShare  map[string]Share
	byPath   map[string]*Table
	loadedAt time.Time
}

// ID identifies this snapshot; it changes on every load
func (s *Snapshot) ID() string {
	return s.id
}

// Shares returns all shares in catalog insertion order
func (s *Snapshot) Shares() []Share {
	return s.shares
}

// Share resolves a share by name
func (s *Snapshot) Share(name string) (Share, error) {
	sh, ok := s.byShare[name]
	if !ok {
		return Share{}, errors.Newf(ErrShareNotFound, "share %q does not exist", name)
	}
	return sh, nil
}

// Schemas returns the schemas of a share in insertion order
func (s *Snapshot) Schemas(share string) ([]Schema, error) {
	if _, err := s.Share(share); err != nil {
		return nil, err
	}
	return s.schemas[share], nil
}

// Tables returns the tables of a schema in insertion order
func (s *Snapshot) Tables(share, schema string) ([]*Table, error) {
	if _, err := s.Share(share); err != nil {
		return nil, err
	}
	tables, ok := s.tables[share+"/"+schema]
	if !ok {
		return nil, errors.Newf(ErrSchemaNotFound, "schema %q does not exist in share %q", schema, share)
	}
	return tables, nil
}

// AllTables returns every table of a share, flattened across schemas in
// schema insertion order
func (s *Snapshot) AllTables(share string) ([]*Table, error) {
	schemas, err := s.Schemas(share)
	if err != nil {
		return nil, err
	}
	var all []*Table
	for _, sch := range schemas {
		all = append(all, s.tables[share+"/"+sch.Name]...)
	}
	return all, nil
}

// Table resolves a single table
func (s *Snapshot) Table(share, schema, table string) (*Table, error) {
	if _, err := s.Tables(share, schema); err != nil {
		return nil, err
	}
	t, ok := s.byPath[share+"/"+schema+"/"+table]
	if !ok {
		return nil, errors.Newf(ErrTableNotFound, "table %q does not exist in %s.%s", table, share, schema)
	}
	return t, nil
}

// Load reads and validates a catalog definition file into a Snapshot
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrCatalogReadFailed, err, "failed to read catalog file")
	}

	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrCatalogParseFailed, err, "failed to parse catalog file")
	}

	snap := &Snapshot{
		id:       utils.GenerateULIDString(),
		schemas:  make(map[string][]Schema),
		tables:   make(map[string][]*Table),
		byShare:  make(map[string]Share),
		byPath:   make(map[string]*Table),
		loadedAt: time.Now(),
	}

	for _, se := range doc.Shares {
		if se.Name == "" {
			return nil, errors.New(ErrCatalogInvalid, "share name must not be empty")
		}
		if _, exists := snap.byShare[se.Name]; exists {
			return nil, errors.Newf(ErrCatalogInvalid, "duplicate share %q", se.Name)
		}

		share := Share{ID: se.ID, Name: se.Name}
		if share.ID == "" {
			share.ID = se.Name
		}
		snap.shares = append(snap.shares, share)
		snap.byShare[se.Name] = share

		seenSchemas := make(map[string]bool)
		for _, sce := range se.Schemas {
			if sce.Name == "" {
				return nil, errors.Newf(ErrCatalogInvalid, "schema name must not be empty in share %q", se.Name)
			}
			if seenSchemas[sce.Name] {
				return nil, errors.Newf(ErrCatalogInvalid, "duplicate schema %q in share %q", sce.Name, se.Name)
			}
			seenSchemas[sce.Name] = true

			snap.schemas[se.Name] = append(snap.schemas[se.Name], Schema{Name: sce.Name, Share: se.Name})
			schemaKey := se.Name + "/" + sce.Name
			snap.tables[schemaKey] = []*Table{}

			seenTables := make(map[string]bool)
			for _, te := range sce.Tables {
				if seenTables[te.Name] {
					return nil, errors.Newf(ErrCatalogInvalid, "duplicate table %q in %s.%s", te.Name, se.Name, sce.Name)
				}
				seenTables[te.Name] = true

				table, err := buildTable(se.Name, sce.Name, te)
				if err != nil {
					return nil, err
				}
				snap.tables[schemaKey] = append(snap.tables[schemaKey], table)
				snap.byPath[schemaKey+"/"+te.Name] = table
			}
		}
	}

	return snap, nil
}

func buildTable(share, schema string, te tableEntry) (*Table, error) {
	if te.Name == "" {
		return nil, errors.Newf(ErrCatalogInvalid, "table name must not be empty in %s.%s", share, schema)
	}

	bucket, prefix, err := parseLocation(te.Location)
	if err != nil {
		return nil, errors.Wrapf(ErrCatalogInvalid, err, "invalid location for table %s.%s.%s", share, schema, te.Name)
	}

	table := &Table{
		ID:               te.ID,
		Name:             te.Name,
		Schema:           schema,
		Share:            share,
		Location:         te.Location,
		Format:           te.Format,
		SchemaString:     te.SchemaString,
		PartitionColumns: te.PartitionColumns,
		Configuration:    te.Configuration,
		CurrentVersion:   te.CurrentVersion,
		bucket:           bucket,
		prefix:           prefix,
	}
	if table.Format == "" {
		table.Format = DefaultTableFormat
	}
	if table.Configuration == nil {
		table.Configuration = map[string]string{}
	}
	if table.CurrentVersion < 0 {
		return nil, errors.Newf(ErrCatalogInvalid, "table %s.%s.%s has negative current_version", share, schema, te.Name)
	}
	if table.ID == "" {
		table.ID = uuid.NewSHA1(tableIDNamespace, []byte(share+"/"+schema+"/"+te.Name)).String()
	}

	for _, ve := range te.History {
		tv := TableVersion{Version: ve.Version}
		if ve.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339, ve.Timestamp)
			if err != nil {
				return nil, errors.Wrapf(ErrCatalogInvalid, err, "invalid timestamp for version %d of table %s.%s.%s", ve.Version, share, schema, te.Name)
			}
			tv.Timestamp = ts
		}
		for _, fe := range ve.Files {
			if fe.Key == "" {
				return nil, errors.Newf(ErrCatalogInvalid, "pinned file key must not be empty in table %s.%s.%s", share, schema, te.Name)
			}
			tv.Files = append(tv.Files, PinnedFile{
				Key:             fe.Key,
				Size:            fe.Size,
				PartitionValues: fe.PartitionValues,
				Stats:           fe.Stats,
			})
		}
		table.History = append(table.History, tv)
	}

	sort.Slice(table.History, func(i, j int) bool {
		return table.History[i].Version < table.History[j].Version
	})
	for i := 1; i < len(table.History); i++ {
		if table.History[i].Version == table.History[i-1].Version {
			return nil, errors.Newf(ErrCatalogInvalid, "duplicate version %d in table %s.%s.%s", table.History[i].Version, share, schema, te.Name)
		}
		if table.History[i].Timestamp.Before(table.History[i-1].Timestamp) {
			return nil, errors.Newf(ErrCatalogInvalid, "version timestamps out of order in table %s.%s.%s", share, schema, te.Name)
		}
	}
	if n := len(table.History); n > 0 && table.History[n-1].Version > table.CurrentVersion {
		return nil, errors.Newf(ErrCatalogInvalid, "history of table %s.%s.%s exceeds current_version %d", share, schema, te.Name, table.CurrentVersion)
	}

	return table, nil
}

// parseLocation splits an s3://bucket/prefix URI
func parseLocation(location string) (bucket, prefix string, err error) {
	if location == "" {
		return "", "", fmt.Errorf("location is required")
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" && u.Scheme != "s3a" {
		return "", "", fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("location %q has no bucket", location)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// Store holds the active catalog snapshot and swaps it atomically on
// reload. In-flight requests keep the snapshot they started with.
type Store struct {
	path   string
	logger zerolog.Logger
	snap   atomic.Pointer[Snapshot]
}

// NewStore loads the catalog from path and returns a Store around it
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	store := &Store{
		path:   path,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Snapshot returns the current immutable catalog snapshot
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload loads the catalog file and swaps the active snapshot. On failure
// the previous snapshot stays active.
func (s *Store) Reload() error {
	snap, err := Load(s.path)
	if err != nil {
		return err
	}
	s.snap.Store(snap)

	shares := 0
	tables := 0
	for _, sh := range snap.shares {
		shares++
		for _, sch := range snap.schemas[sh.Name] {
			tables += len(snap.tables[sh.Name+"/"+sch.Name])
		}
	}
	s.logger.Info().
		Str("snapshot_id", snap.id).
		Int("shares", shares).
		Int("tables", tables).
		Msg("Catalog snapshot loaded")

	return nil
}
