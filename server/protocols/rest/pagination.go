package rest

import (
	"encoding/base64"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
)

// pageToken is the decoded form of the opaque nextPageToken. The
// fingerprint binds a token to the snapshot and listing it was minted
// for, so a token cannot resume a different listing.
type pageToken struct {
	Offset      int    `json:"offset"`
	Fingerprint string `json:"fingerprint"`
	IssuedAt    int64  `json:"issuedAt"`
}

// encodePageToken mints an opaque continuation token for the given offset
func encodePageToken(offset int, fingerprint string) string {
	raw, _ := json.Marshal(pageToken{
		Offset:      offset,
		Fingerprint: fingerprint,
		IssuedAt:    time.Now().Unix(),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodePageToken validates and decodes a continuation token. Malformed
// tokens, expired tokens, and tokens minted for a different listing all
// fail the same way.
func decodePageToken(token, fingerprint string, ttl time.Duration) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidPageToken, err, "page token is not valid")
	}

	var pt pageToken
	if err := json.Unmarshal(raw, &pt); err != nil {
		return 0, errors.Wrap(ErrInvalidPageToken, err, "page token is not valid")
	}
	if pt.Offset < 0 || pt.Fingerprint != fingerprint {
		return 0, errors.New(ErrInvalidPageToken, "page token does not match this listing")
	}
	issued := time.Unix(pt.IssuedAt, 0)
	if time.Since(issued) > ttl {
		return 0, errors.New(ErrInvalidPageToken, "page token has expired")
	}

	return pt.Offset, nil
}

// listingFingerprint derives a stable fingerprint from the snapshot id
// and the listing scope parts
func listingFingerprint(snapshotID string, parts ...string) string {
	h := fnv.New64a()
	h.Write([]byte(snapshotID))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// pageParams are the resolved pagination inputs of one listing request
type pageParams struct {
	maxResults int
	offset     int
}

// pageParams parses maxResults and pageToken from the request query
func (s *Server) pageParams(r *http.Request, fingerprint string) (pageParams, error) {
	params := pageParams{maxResults: s.config.Pagination.DefaultMaxResults}

	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return params, errors.Newf(ErrInvalidMaxResults, "maxResults %q must be a positive integer", raw)
		}
		if n > s.config.Pagination.MaxMaxResults {
			n = s.config.Pagination.MaxMaxResults
		}
		params.maxResults = n
	}

	if token := r.URL.Query().Get("pageToken"); token != "" {
		offset, err := decodePageToken(token, fingerprint, s.config.GetPageTokenTTL())
		if err != nil {
			return params, err
		}
		params.offset = offset
	}

	return params, nil
}

// paginate slices one page out of items and mints the continuation token
// when more remain
func paginate[T any](items []T, params pageParams, fingerprint string) ([]T, string) {
	if params.offset >= len(items) {
		return []T{}, ""
	}

	end := params.offset + params.maxResults
	if end >= len(items) {
		return items[params.offset:], ""
	}
	return items[params.offset:end], encodePageToken(end, fingerprint)
}
