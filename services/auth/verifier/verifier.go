package verifier

import (
	"context"
	"database/sql"
	"ecourts-backend/lib/timezone"
	"ecourts-backend/services/auth/db"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ecourts.services.auth.verifier")
var meter = otel.Meter("ecourts.services.auth.verifier")

var uniquePrincipalCounter, _ = meter.Int64Counter("auth_service.unique_principal_counter")

// seenToday counts each principal once per (IST) day.
type seenToday struct {
	mu   sync.Mutex
	day  int
	seen map[string]struct{}
}

func (s *seenToday) count(ctx context.Context, principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := timezone.Now().YearDay()
	if s.seen == nil || s.day != today {
		s.seen = map[string]struct{}{}
		s.day = today
	}
	if _, ok := s.seen[principal]; ok {
		return
	}
	s.seen[principal] = struct{}{}
	uniquePrincipalCounter.Add(ctx, 1)
}

var InvalidToken = errors.New("invalid token")

// Principal is whoever an api token was issued to.
type Principal struct {
	ID   string
	Name string
}

type Verifier struct {
	qry  *db.Queries
	seen *seenToday
}

func NewVerifier(database *sql.DB) Verifier {
	return Verifier{qry: db.New(database), seen: &seenToday{}}
}

func (v Verifier) VerifyToken(ctx context.Context, token string) (Principal, error) {
	ctx, span := tracer.Start(ctx, "VerifyToken")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		span.SetStatus(codes.Error, "empty token")
		return Principal{}, InvalidToken
	}

	row, err := v.qry.GetPrincipalFromToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "invalid token")
		return Principal{}, InvalidToken
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "got unexpected error while reading token")
		return Principal{}, err
	}

	v.seen.count(ctx, row.Principal)
	return Principal{ID: row.Principal, Name: row.Name}, nil
}
