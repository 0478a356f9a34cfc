// Package auditlog keeps a per-principal log of every call made against
// the case-status api.
package auditlog

import (
	"bytes"
	"context"
	"database/sql"
	"ecourts-backend/internal/assert"
	"ecourts-backend/services/auditlog/db"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ecourts.services.auditlog")

type Entry struct {
	ID          string          `json:"id"`
	Principal   string          `json:"principal"`
	Endpoint    string          `json:"endpoint"`
	Request     json.RawMessage `json:"request"`
	Response    json.RawMessage `json:"response"`
	StatusCode  int             `json:"status_code"`
	IP          string          `json:"ip"`
	UserAgent   string          `json:"user_agent"`
	RequestedAt time.Time       `json:"requested_at"`
	RespondedAt time.Time       `json:"responded_at"`
}

type Store struct {
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	assert.NotNil(database, "database")
	return Store{qry: db.New(database)}
}

// Record stores entry, generating its id when it has none. Images inlined
// as data urls are elided from both payloads.
func (s Store) Record(ctx context.Context, entry Entry) error {
	ctx, span := tracer.Start(ctx, "Record")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	err := s.qry.InsertAuditLog(ctx, db.InsertAuditLogParams{
		ID:          entry.ID,
		Principal:   entry.Principal,
		Endpoint:    entry.Endpoint,
		Request:     string(ElideImages(entry.Request)),
		Response:    string(ElideImages(entry.Response)),
		StatusCode:  int64(entry.StatusCode),
		Ip:          entry.IP,
		UserAgent:   entry.UserAgent,
		RequestedAt: entry.RequestedAt.UnixMilli(),
		RespondedAt: entry.RespondedAt.UnixMilli(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert audit log")
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns principal's most recent entries, newest first.
func (s Store) List(ctx context.Context, principal string, limit int) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	rows, err := s.qry.ListAuditLogs(ctx, db.ListAuditLogsParams{
		Principal: principal,
		Limit:     int64(limit),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list audit logs")
		return nil, err
	}

	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = Entry{
			ID:          row.ID,
			Principal:   row.Principal,
			Endpoint:    row.Endpoint,
			Request:     json.RawMessage(row.Request),
			Response:    json.RawMessage(row.Response),
			StatusCode:  int(row.StatusCode),
			IP:          row.Ip,
			UserAgent:   row.UserAgent,
			RequestedAt: time.UnixMilli(row.RequestedAt),
			RespondedAt: time.UnixMilli(row.RespondedAt),
		}
	}
	return out, nil
}

// Prune deletes every entry requested before cutoff.
func (s Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "Prune")
	defer span.End()

	deleted, err := s.qry.DeleteAuditLogsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prune audit logs")
		return 0, err
	}
	return deleted, nil
}

const imagePrefix = "data:image/"

// ElideImages replaces every data url image in a json document with a
// short placeholder. Anything that is not json is stored as a json string.
func ElideImages(raw []byte) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc any
	err := decoder.Decode(&doc)
	if err != nil {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}

	out, err := json.Marshal(elide(doc))
	if err != nil {
		quoted, _ := json.Marshal(string(raw))
		return quoted
	}
	return out
}

func elide(value any) any {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, imagePrefix) {
			return fmt.Sprintf("<image elided, %d bytes>", len(v))
		}
		return v
	case map[string]any:
		for key, inner := range v {
			v[key] = elide(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = elide(inner)
		}
		return v
	default:
		return v
	}
}

// BinarySummary stands in for a binary payload in an entry.
func BinarySummary(mediaType string, size int) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"media_type": mediaType,
		"size":       size,
	})
	return out
}
