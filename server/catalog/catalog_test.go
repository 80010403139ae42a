package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
shares:
  - name: fairgrounds_share
    schemas:
      - name: default
        tables:
          - name: customers
            location: s3://delta-sharing-data/sample_data/customers
            schema_string: '{"type":"struct","fields":[{"name":"id","type":"integer","nullable":true,"metadata":{}}]}'
            partition_columns: [state]
            current_version: 2
            history:
              - version: 1
                timestamp: "2026-01-01T00:00:00Z"
                files:
                  - key: sample_data/customers/state=CA/part-0001.parquet
                    size: 1024
                    partition_values: {state: CA}
              - version: 2
                timestamp: "2026-02-01T00:00:00Z"
          - name: orders
            location: s3://delta-sharing-data/sample_data/orders
            current_version: 0
      - name: analytics
        tables:
          - name: events
            location: s3://analytics-bucket/events
            current_version: 0
  - name: partner_share
    id: partner-share-id
    schemas:
      - name: exports
        tables: []
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadSample(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)
	return snap
}

func TestLoadShares(t *testing.T) {
	snap := loadSample(t)

	shares := snap.Shares()
	require.Len(t, shares, 2)
	assert.Equal(t, "fairgrounds_share", shares[0].Name)
	assert.Equal(t, "fairgrounds_share", shares[0].ID, "id defaults to name")
	assert.Equal(t, "partner_share", shares[1].Name)
	assert.Equal(t, "partner-share-id", shares[1].ID)

	sh, err := snap.Share("fairgrounds_share")
	require.NoError(t, err)
	assert.Equal(t, "fairgrounds_share", sh.Name)

	_, err = snap.Share("nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrShareNotFound))
}

func TestLoadSchemasAndTables(t *testing.T) {
	snap := loadSample(t)

	schemas, err := snap.Schemas("fairgrounds_share")
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "default", schemas[0].Name)
	assert.Equal(t, "analytics", schemas[1].Name)

	tables, err := snap.Tables("fairgrounds_share", "default")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "customers", tables[0].Name)
	assert.Equal(t, "orders", tables[1].Name)

	_, err = snap.Tables("fairgrounds_share", "missing")
	assert.True(t, errors.HasCode(err, ErrSchemaNotFound))

	_, err = snap.Tables("missing", "default")
	assert.True(t, errors.HasCode(err, ErrShareNotFound))
}

func TestAllTablesFlattened(t *testing.T) {
	snap := loadSample(t)

	all, err := snap.AllTables("fairgrounds_share")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"customers", "orders", "events"},
		[]string{all[0].Name, all[1].Name, all[2].Name})
}

func TestTableLookup(t *testing.T) {
	snap := loadSample(t)

	tbl, err := snap.Table("fairgrounds_share", "default", "customers")
	require.NoError(t, err)
	assert.Equal(t, "delta-sharing-data", tbl.Bucket())
	assert.Equal(t, "sample_data/customers", tbl.Prefix())
	assert.Equal(t, DefaultTableFormat, tbl.Format)
	assert.Equal(t, int64(2), tbl.CurrentVersion)
	assert.Contains(t, tbl.SchemaString, `"type":"struct"`)
	assert.NotEmpty(t, tbl.ID)

	require.Len(t, tbl.History, 2)
	v1 := tbl.VersionAt(1)
	require.NotNil(t, v1)
	require.Len(t, v1.Files, 1)
	assert.Equal(t, "CA", v1.Files[0].PartitionValues["state"])
	assert.Nil(t, tbl.VersionAt(99))

	_, err = snap.Table("fairgrounds_share", "default", "orders2")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTableNotFound))
}

func TestDeterministicTableIDs(t *testing.T) {
	a := loadSample(t)
	b := loadSample(t)

	ta, err := a.Table("fairgrounds_share", "default", "customers")
	require.NoError(t, err)
	tb, err := b.Table("fairgrounds_share", "default", "customers")
	require.NoError(t, err)

	assert.Equal(t, ta.ID, tb.ID)
	assert.NotEqual(t, a.ID(), b.ID(), "snapshot ids differ per load")
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"duplicate share": `
shares:
  - name: s1
  - name: s1
`,
		"duplicate schema": `
shares:
  - name: s1
    schemas:
      - name: a
      - name: a
`,
		"duplicate table": `
shares:
  - name: s1
    schemas:
      - name: a
        tables:
          - {name: t, location: "s3://b/p"}
          - {name: t, location: "s3://b/p"}
`,
		"missing location": `
shares:
  - name: s1
    schemas:
      - name: a
        tables:
          - {name: t}
`,
		"bad location scheme": `
shares:
  - name: s1
    schemas:
      - name: a
        tables:
          - {name: t, location: "http://b/p"}
`,
		"history beyond current version": `
shares:
  - name: s1
    schemas:
      - name: a
        tables:
          - name: t
            location: "s3://b/p"
            current_version: 1
            history:
              - {version: 2, timestamp: "2026-01-01T00:00:00Z"}
`,
		"bad timestamp": `
shares:
  - name: s1
    schemas:
      - name: a
        tables:
          - name: t
            location: "s3://b/p"
            current_version: 1
            history:
              - {version: 1, timestamp: "yesterday"}
`,
	}

	for name, content := range cases {
		_, err := Load(writeCatalog(t, content))
		require.Error(t, err, name)
		assert.True(t, errors.HasCode(err, ErrCatalogInvalid), name)
	}
}

func TestStoreReloadSwapsSnapshot(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	store, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)

	before := store.Snapshot()
	require.NotNil(t, before)

	require.NoError(t, os.WriteFile(path, []byte(`
shares:
  - name: only_share
`), 0644))
	require.NoError(t, store.Reload())

	after := store.Snapshot()
	assert.NotEqual(t, before.ID(), after.ID())
	require.Len(t, after.Shares(), 1)
	assert.Equal(t, "only_share", after.Shares()[0].Name)

	// The old snapshot is untouched
	require.Len(t, before.Shares(), 2)
}

func TestStoreReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	store, err := NewStore(path, zerolog.Nop())
	require.NoError(t, err)

	before := store.Snapshot()

	require.NoError(t, os.WriteFile(path, []byte("shares: [{name: a}, {name: a}]"), 0644))
	require.Error(t, store.Reload())

	assert.Equal(t, before.ID(), store.Snapshot().ID())
}
