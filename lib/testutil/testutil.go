package testutil

import (
	"database/sql"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/sqliteutil"
	"testing"
)

type ServiceParams struct {
	// if unspecified, it will skip setting up a db
	DbSchema string
}

type ServiceResult struct {
	DB  *sql.DB
	Tel *telemetry.Recorder
}

// SetupService gives a service under test an in-memory database with
// schema applied and a telemetry recorder, both released through t.Cleanup.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	t.Helper()

	out := ServiceResult{Tel: &telemetry.Recorder{}}
	if params.DbSchema == "" {
		return out
	}

	db, err := sqliteutil.Config{File: ":memory:"}.OpenDB(params.DbSchema)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	out.DB = db
	return out
}
