// Package auth issues and revokes the api tokens principals authenticate
// with, verification lives in the verifier subpackage.
package auth

import (
	"context"
	"database/sql"
	"ecourts-backend/internal/assert"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/services/auth/db"
	"fmt"
	"strings"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

const tokenLength = 40

type Service struct {
	qry  *db.Queries
	time chrono.TimeAPI
}

func NewService(database *sql.DB, time chrono.TimeAPI) Service {
	assert.NotNil(database, "database")
	assert.NotNil(time, "time")
	return Service{qry: db.New(database), time: time}
}

func normalizePrincipal(principal string) string {
	return strings.Trim(strings.ToLower(principal), " \t\n")
}

// IssueToken creates a new token for principal, name is a free form label
// shown when listing tokens.
func (s Service) IssueToken(ctx context.Context, principal, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "IssueToken")
	defer span.End()

	principal = normalizePrincipal(principal)
	if principal == "" {
		span.SetStatus(codes.Error, "empty principal")
		return "", fmt.Errorf("principal is required")
	}

	token, err := random.String(tokenLength)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate token")
		return "", err
	}
	err = s.qry.CreateToken(ctx, db.CreateTokenParams{
		Token:     token,
		Principal: principal,
		Name:      name,
		CreatedAt: s.time.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert token row")
		return "", err
	}
	return token, nil
}

// RevokeToken revokes token, reporting whether it was still active.
func (s Service) RevokeToken(ctx context.Context, token string) (bool, error) {
	ctx, span := tracer.Start(ctx, "RevokeToken")
	defer span.End()

	affected, err := s.qry.RevokeToken(ctx, db.RevokeTokenParams{
		RevokedAt: sql.NullInt64{Int64: s.time.Now().Unix(), Valid: true},
		Token:     token,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to revoke token")
		return false, err
	}
	return affected > 0, nil
}

func (s Service) ListTokens(ctx context.Context, principal string) ([]db.ApiToken, error) {
	ctx, span := tracer.Start(ctx, "ListTokens")
	defer span.End()

	tokens, err := s.qry.ListTokens(ctx, normalizePrincipal(principal))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tokens")
		return nil, err
	}
	return tokens, nil
}
