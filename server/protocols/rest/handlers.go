package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/query"
	"github.com/go-chi/chi/v5"
)

// handleHealth is the unauthenticated liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// denyShare rejects access to a share outside the token scope. The
// response is indistinguishable from an unknown token, so a scoped
// token cannot probe for shares it was not granted.
func (s *Server) denyShare(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, s.logger, errors.New(ErrShareForbidden, "invalid bearer token"))
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	scope := scopeFrom(r.Context())

	items := make([]shareItem, 0)
	for _, share := range snap.Shares() {
		if !scope.Allows(share.Name) {
			continue
		}
		items = append(items, shareItem{Name: share.Name, ID: share.ID})
	}

	fingerprint := listingFingerprint(snap.ID(), "shares", scope.fingerprint())
	params, err := s.pageParams(r, fingerprint)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	page, next := paginate(items, params, fingerprint)
	writeJSON(w, http.StatusOK, listPage[shareItem]{Items: page, NextPageToken: next})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	share := chi.URLParam(r, "share")

	if !scopeFrom(r.Context()).Allows(share) {
		s.denyShare(w, r)
		return
	}

	schemas, err := snap.Schemas(share)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	items := make([]schemaItem, 0, len(schemas))
	for _, sch := range schemas {
		items = append(items, schemaItem{Name: sch.Name, Share: sch.Share})
	}

	fingerprint := listingFingerprint(snap.ID(), "schemas", share)
	params, err := s.pageParams(r, fingerprint)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	page, next := paginate(items, params, fingerprint)
	writeJSON(w, http.StatusOK, listPage[schemaItem]{Items: page, NextPageToken: next})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	share := chi.URLParam(r, "share")
	schema := chi.URLParam(r, "schema")

	if !scopeFrom(r.Context()).Allows(share) {
		s.denyShare(w, r)
		return
	}

	tables, err := snap.Tables(share, schema)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	fingerprint := listingFingerprint(snap.ID(), "tables", share, schema)
	params, err := s.pageParams(r, fingerprint)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	page, next := paginate(s.tableItems(snap, share, tables), params, fingerprint)
	writeJSON(w, http.StatusOK, listPage[tableItem]{Items: page, NextPageToken: next})
}

func (s *Server) handleListAllTables(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	share := chi.URLParam(r, "share")

	if !scopeFrom(r.Context()).Allows(share) {
		s.denyShare(w, r)
		return
	}

	tables, err := snap.AllTables(share)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	fingerprint := listingFingerprint(snap.ID(), "all-tables", share)
	params, err := s.pageParams(r, fingerprint)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	page, next := paginate(s.tableItems(snap, share, tables), params, fingerprint)
	writeJSON(w, http.StatusOK, listPage[tableItem]{Items: page, NextPageToken: next})
}

func (s *Server) tableItems(snap *catalog.Snapshot, share string, tables []*catalog.Table) []tableItem {
	sh, _ := snap.Share(share)
	items := make([]tableItem, 0, len(tables))
	for _, t := range tables {
		items = append(items, tableItem{
			Name:    t.Name,
			Schema:  t.Schema,
			Share:   t.Share,
			ShareID: sh.ID,
			ID:      t.ID,
		})
	}
	return items
}

// resolveTable looks up the addressed table after the scope check
func (s *Server) resolveTable(r *http.Request) (*catalog.Table, error) {
	share := chi.URLParam(r, "share")
	schema := chi.URLParam(r, "schema")
	table := chi.URLParam(r, "table")

	if !scopeFrom(r.Context()).Allows(share) {
		return nil, errors.New(ErrShareForbidden, "invalid bearer token")
	}

	return s.catalog.Snapshot().Table(share, schema, table)
}

func (s *Server) handleTableMetadata(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.resolveTable(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	plan, err := s.planner.Plan(r.Context(), tbl, nil)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	actions := []action{
		{Protocol: &protocolAction{MinReaderVersion: minReaderVersion}},
		{MetaData: metadataFor(tbl, plan)},
	}
	if err := writeActionStream(w, plan.Version, actions); err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("Failed to write action stream")
	}
}

func (s *Server) handleTableQuery(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.resolveTable(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	req, err := decodeReadRequest(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	plan, err := s.planner.Plan(r.Context(), tbl, req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	signed, err := s.issuer.Sign(r.Context(), tbl.Bucket(), plan.Files)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	// Pinned reads carry the resolved version on each file action
	var fileVersion, fileTimestamp int64
	if req.Version != nil || req.Timestamp != nil {
		fileVersion = plan.Version
		if tv := tbl.VersionAt(plan.Version); tv != nil && !tv.Timestamp.IsZero() {
			fileTimestamp = tv.Timestamp.UnixMilli()
		}
	}

	actions := make([]action, 0, len(signed)+2)
	actions = append(actions,
		action{Protocol: &protocolAction{MinReaderVersion: minReaderVersion}},
		action{MetaData: metadataFor(tbl, plan)},
	)
	for _, sf := range signed {
		values := sf.Entry.PartitionValues
		if values == nil {
			values = map[string]string{}
		}
		actions = append(actions, action{File: &fileAction{
			URL:                 sf.URL,
			ID:                  sf.Entry.ID,
			PartitionValues:     values,
			Size:                sf.Entry.Size,
			Stats:               sf.Entry.Stats,
			Version:             fileVersion,
			Timestamp:           fileTimestamp,
			ExpirationTimestamp: sf.ExpiresAt.UnixMilli(),
		}})
	}

	if err := writeActionStream(w, plan.Version, actions); err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("Failed to write action stream")
	}
}

// decodeReadRequest parses the optional query body. An empty body is a
// plain latest-version read; unknown fields are rejected.
func decodeReadRequest(r *http.Request) (*query.ReadRequest, error) {
	var req query.ReadRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		if err == io.EOF {
			return &req, nil
		}
		return nil, errors.Wrap(ErrMalformedBody, err, "request body is not a valid read request")
	}

	return &req, nil
}

func metadataFor(tbl *catalog.Table, plan *query.Plan) *metadataAction {
	columns := tbl.PartitionColumns
	if columns == nil {
		columns = []string{}
	}
	return &metadataAction{
		ID:               tbl.ID,
		Format:           formatSpec{Provider: tbl.Format},
		SchemaString:     tbl.SchemaString,
		PartitionColumns: columns,
		Configuration:    tbl.Configuration,
		Version:          plan.Version,
		Size:             plan.TotalSize,
		NumFiles:         plan.NumFiles,
	}
}
