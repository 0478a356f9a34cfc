package casestatus

import (
	"context"
	"ecourts-backend/internal/assert"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/services/auditlog"
	"ecourts-backend/services/auth/verifier"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuditLog is where every api call is recorded. Recording is best effort,
// a failing log never fails the call.
type AuditLog interface {
	Record(ctx context.Context, entry auditlog.Entry) error
	List(ctx context.Context, principal string, limit int) ([]auditlog.Entry, error)
}

type HandlerOptions struct {
	Verifier verifier.TokenVerifier
	// Audit may be nil, calls are then not recorded.
	Audit AuditLog
	// Metrics is the registry the handler's metrics are registered with
	// and served from, nil uses a fresh one.
	Metrics *prometheus.Registry
	Time    chrono.TimeAPI
	Tel     telemetry.API
}

const maxRequestBody = 64 << 10
const logsLimit = 100

type Handler struct {
	service *Service
	audit   AuditLog
	time    chrono.TimeAPI
	tel     telemetry.API

	requests *prometheus.CounterVec
}

// NewHandler exposes service over http.
func NewHandler(service *Service, opts HandlerOptions) http.Handler {
	assert.NotNil(service, "service")
	assert.NotNil(opts.Verifier, "verifier")
	assert.NotNil(opts.Time, "time")
	assert.NotNil(opts.Tel, "telemetry")

	metrics := opts.Metrics
	if metrics == nil {
		metrics = prometheus.NewRegistry()
	}
	factory := promauto.With(metrics)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "casestatus",
		Name:      "registry_entries",
		Help:      "Number of principals with a registry entry.",
	}, func() float64 {
		return float64(service.registry.Len())
	})

	h := &Handler{
		service: service,
		audit:   opts.Audit,
		time:    opts.Time,
		tel:     telemetry.NewScopedAPI("casestatus", opts.Tel),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casestatus",
			Name:      "http_requests_total",
			Help:      "Number of api requests by route and status.",
		}, []string{"route", "status"}),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestId)
	router.Use(h.countRequests)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	router.Route("/api", func(r chi.Router) {
		r.Use(verifier.Middleware(opts.Verifier))
		r.Get("/states", h.endpoint("states", h.states))
		r.Post("/districts", h.endpoint("districts", h.districts))
		r.Post("/courts", h.endpoint("courts", h.courts))
		r.Post("/case-types", h.endpoint("case-types", h.caseTypes))
		r.Post("/cases", h.endpoint("cases", h.cases))
		r.Get("/pdf", h.pdf)
		r.Post("/session/close", h.endpoint("session-close", h.closeSession))
		r.Get("/logs", h.endpoint("logs", h.logs))
	})

	return router
}

type requestIdKeyType struct{}

var requestIdKey = requestIdKeyType{}

func requestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("x-request-id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIdKey, id)))
	})
}

func requestIdFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey).(string)
	return id
}

func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

type endpointFunc func(ctx context.Context, principal string, body []byte) (any, error)

// endpoint serves fn as a json endpoint and records the exchange in the
// audit log.
func (h *Handler) endpoint(name string, fn endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestedAt := h.time.Now()
		principal, _ := verifier.PrincipalFromContext(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		var res any
		if err != nil {
			err = newError(ErrBadRequest, StageLanding, err, "could not read request body")
		} else {
			res, err = fn(r.Context(), principal.ID, body)
		}

		status := http.StatusOK
		if err != nil {
			status, res = h.errorResponse(principal.ID, err)
		}
		encoded := h.writeJSON(w, status, res)
		h.record(r, principal.ID, body, encoded, status, requestedAt)
	}
}

type errorBody struct {
	Error          string `json:"error"`
	Kind           string `json:"kind"`
	Stage          string `json:"stage,omitempty"`
	CaptchaImage   string `json:"captcha_image,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func (h *Handler) errorResponse(principal string, err error) (int, errorBody) {
	kerr, ok := AsError(err)
	if !ok {
		h.tel.ReportBroken(report_handler_unclassified, principal, err)
		return http.StatusInternalServerError, errorBody{
			Error: "internal error",
			Kind:  "Internal",
		}
	}

	h.tel.ReportDebug("request failed", "principal", principal, "stage", kerr.Stage.String(), "err", err)
	body := errorBody{
		Error:          kerr.Message,
		Kind:           string(kerr.Kind),
		Stage:          kerr.Stage.String(),
		UpstreamStatus: kerr.UpstreamStatus,
	}
	if len(kerr.Captcha) > 0 {
		body.CaptchaImage = pngDataUrl(kerr.Captcha)
	}
	return kerr.Kind.HTTPStatus(), body
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, value any) []byte {
	encoded, err := json.Marshal(value)
	if err != nil {
		h.tel.ReportBroken(report_handler_encode, err)
		status = http.StatusInternalServerError
		encoded = []byte(`{"error":"internal error","kind":"Internal"}`)
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
	return encoded
}

// record writes the exchange to the audit log, failures are reported and
// otherwise ignored.
func (h *Handler) record(r *http.Request, principal string, request, response []byte, status int, requestedAt time.Time) {
	if h.audit == nil {
		return
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	err = h.audit.Record(context.WithoutCancel(r.Context()), auditlog.Entry{
		ID:          requestIdFromContext(r.Context()),
		Principal:   principal,
		Endpoint:    r.Method + " " + r.URL.Path,
		Request:     request,
		Response:    response,
		StatusCode:  status,
		IP:          ip,
		UserAgent:   r.UserAgent(),
		RequestedAt: requestedAt,
		RespondedAt: h.time.Now(),
	})
	if err != nil {
		h.tel.ReportWarning(report_handler_audit, principal, err)
	}
}

func decode[T any](body []byte) (T, error) {
	var out T
	err := json.Unmarshal(body, &out)
	if err != nil {
		return out, newError(ErrBadRequest, StageLanding, err, "request body is not valid json")
	}
	return out, nil
}

func pngDataUrl(image []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}

func (h *Handler) states(ctx context.Context, principal string, _ []byte) (any, error) {
	states, err := h.service.ListStates(ctx, principal)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"states": states}, nil
}

type districtsRequest struct {
	State string `json:"state"`
}

func (h *Handler) districts(ctx context.Context, principal string, body []byte) (any, error) {
	req, err := decode[districtsRequest](body)
	if err != nil {
		return nil, err
	}
	districts, err := h.service.ListDistricts(ctx, principal, req.State)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"districts": districts}, nil
}

type courtsRequest struct {
	District string `json:"district"`
}

func (h *Handler) courts(ctx context.Context, principal string, body []byte) (any, error) {
	req, err := decode[courtsRequest](body)
	if err != nil {
		return nil, err
	}
	courts, err := h.service.ListCourts(ctx, principal, req.District)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"courts": courts}, nil
}

type caseTypesRequest struct {
	Court string `json:"court"`
}

type caseTypesResponse struct {
	CaseTypes    []string `json:"case_types"`
	CaptchaImage string   `json:"captcha_image"`
}

func (h *Handler) caseTypes(ctx context.Context, principal string, body []byte) (any, error) {
	req, err := decode[caseTypesRequest](body)
	if err != nil {
		return nil, err
	}
	result, err := h.service.ListCaseTypes(ctx, principal, req.Court)
	if err != nil {
		return nil, err
	}
	return caseTypesResponse{
		CaseTypes:    result.CaseTypes,
		CaptchaImage: pngDataUrl(result.Captcha),
	}, nil
}

type casesRequest struct {
	CaseType    string `json:"case_type"`
	CaseNumber  string `json:"case_number"`
	CaseYear    string `json:"case_year"`
	CaptchaText string `json:"captcha_text"`
}

type casesResponse struct {
	Status          string             `json:"status"`
	Case            ecourts.CaseRecord `json:"case"`
	HtmlContent     string             `json:"html_content"`
	PdfURL          string             `json:"pdf_url"`
	NextHearingDate string             `json:"next_hearing_date"`
	IsTomorrow      bool               `json:"is_next_hearing_tomorrow"`
}

func (h *Handler) cases(ctx context.Context, principal string, body []byte) (any, error) {
	req, err := decode[casesRequest](body)
	if err != nil {
		return nil, err
	}
	result, err := h.service.SubmitCase(ctx, principal, SubmitInput{
		CaseType:    req.CaseType,
		CaseNumber:  req.CaseNumber,
		CaseYear:    req.CaseYear,
		CaptchaText: req.CaptchaText,
	})
	if err != nil {
		return nil, err
	}

	hearing := result.Record.NextHearing
	return casesResponse{
		Status:          "success",
		Case:            result.Record,
		HtmlContent:     result.HTML,
		PdfURL:          result.PdfURL,
		NextHearingDate: hearing.Raw,
		IsTomorrow:      hearing.IsTomorrow,
	}, nil
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	requestedAt := h.time.Now()
	principal, _ := verifier.PrincipalFromContext(r.Context())

	data, err := h.service.FetchPdf(r.Context(), principal.ID)
	if err != nil {
		status, body := h.errorResponse(principal.ID, err)
		encoded := h.writeJSON(w, status, body)
		h.record(r, principal.ID, nil, encoded, status, requestedAt)
		return
	}

	w.Header().Set("content-type", "application/pdf")
	w.Header().Set("content-disposition", `attachment; filename="order.pdf"`)
	w.Header().Set("content-length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	h.record(r, principal.ID, nil, auditlog.BinarySummary("application/pdf", len(data)), http.StatusOK, requestedAt)
}

func (h *Handler) closeSession(ctx context.Context, principal string, _ []byte) (any, error) {
	h.service.CloseSession(principal)
	return map[string]string{"status": "closed"}, nil
}

func (h *Handler) logs(ctx context.Context, principal string, _ []byte) (any, error) {
	if h.audit == nil {
		return map[string][]auditlog.Entry{"logs": {}}, nil
	}
	entries, err := h.audit.List(ctx, principal, logsLimit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	if entries == nil {
		entries = []auditlog.Entry{}
	}
	return map[string][]auditlog.Entry{"logs": entries}, nil
}
