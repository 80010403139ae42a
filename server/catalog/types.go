package catalog

import (
	"time"
)

// Share is the top-level sharing boundary grouping schemas
type Share struct {
	ID   string
	Name string
}

// Schema is a namespace grouping tables within a share
type Schema struct {
	Name  string
	Share string
}

// Table is a shareable, versioned dataset backed by object-storage files
type Table struct {
	ID               string
	Name             string
	Schema           string
	Share            string
	Location         string // s3://bucket/prefix
	Format           string
	SchemaString     string
	PartitionColumns []string
	Configuration    map[string]string
	CurrentVersion   int64
	History          []TableVersion

	bucket string
	prefix string
}

// Bucket returns the storage bucket parsed from Location
func (t *Table) Bucket() string {
	return t.bucket
}

// Prefix returns the object key prefix parsed from Location
func (t *Table) Prefix() string {
	return t.prefix
}

// VersionAt returns the table version entry for the given version number,
// or nil when the version is not recorded in the history.
func (t *Table) VersionAt(version int64) *TableVersion {
	for i := range t.History {
		if t.History[i].Version == version {
			return &t.History[i]
		}
	}
	return nil
}

// TableVersion is one committed version of a table. Timestamp is the commit
// time; Files, when present, pins the exact file set for that version.
type TableVersion struct {
	Version   int64
	Timestamp time.Time
	Files     []PinnedFile
}

// PinnedFile is a physical object recorded in the catalog for a specific
// table version, with partition values and optional stats carried verbatim.
type PinnedFile struct {
	Key             string
	Size            int64
	PartitionValues map[string]string
	Stats           string
}
