package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Protocol constants of the sharing wire format
const (
	minReaderVersion   = 1
	headerTableVersion = "Delta-Table-Version"
	contentTypeNDJSON  = "application/x-ndjson; charset=utf-8"
	contentTypeJSON    = "application/json; charset=utf-8"
)

// Listing item shapes

type shareItem struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

type schemaItem struct {
	Name  string `json:"name"`
	Share string `json:"share"`
}

type tableItem struct {
	Name    string `json:"name"`
	Schema  string `json:"schema"`
	Share   string `json:"share"`
	ShareID string `json:"shareId,omitempty"`
	ID      string `json:"id,omitempty"`
}

// listPage is the body of every listing endpoint
type listPage[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// NDJSON action line shapes

type protocolAction struct {
	MinReaderVersion int `json:"minReaderVersion"`
}

type formatSpec struct {
	Provider string `json:"provider"`
}

type metadataAction struct {
	ID               string            `json:"id"`
	Format           formatSpec        `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
	Version          int64             `json:"version"`
	Size             int64             `json:"size,omitempty"`
	NumFiles         int               `json:"numFiles,omitempty"`
}

type fileAction struct {
	URL                 string            `json:"url"`
	ID                  string            `json:"id"`
	PartitionValues     map[string]string `json:"partitionValues"`
	Size                int64             `json:"size"`
	Stats               string            `json:"stats,omitempty"`
	Version             int64             `json:"version,omitempty"`
	Timestamp           int64             `json:"timestamp,omitempty"`
	ExpirationTimestamp int64             `json:"expirationTimestamp,omitempty"`
}

// action is one NDJSON line; exactly one field is set per line
type action struct {
	Protocol *protocolAction `json:"protocol,omitempty"`
	MetaData *metadataAction `json:"metaData,omitempty"`
	File     *fileAction     `json:"file,omitempty"`
}

// writeJSON renders a plain JSON response body
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeActionStream renders the NDJSON action lines with the resolved
// table version in the response header
func writeActionStream(w http.ResponseWriter, version int64, actions []action) error {
	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.Header().Set(headerTableVersion, strconv.FormatInt(version, 10))
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, a := range actions {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}
