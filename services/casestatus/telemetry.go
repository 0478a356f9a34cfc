package casestatus

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const library_name = "ecourts.services.casestatus"

var tracer = otel.Tracer(library_name)
var meter = otel.Meter(library_name)

var sessionsCreated, _ = meter.Int64Counter("casestatus.sessions_created")
var sessionsClosed, _ = meter.Int64Counter("casestatus.sessions_closed")
var sessionsActive, _ = meter.Int64UpDownCounter("casestatus.sessions_active")
var stageDuration, _ = meter.Float64Histogram(
	"casestatus.stage_duration_ms",
	metric.WithUnit("ms"),
)
var captchaRejections, _ = meter.Int64Counter("casestatus.captcha_rejections")

func SetTracerProvider(provider trace.TracerProvider) {
	tracer = provider.Tracer(library_name)
}

const (
	report_lifecycle_create     = "lifecycle.create"
	report_lifecycle_probe      = "lifecycle.probe"
	report_lifecycle_close      = "lifecycle.close"
	report_stage_states         = "stages.list-states"
	report_stage_districts      = "stages.list-districts"
	report_stage_courts         = "stages.list-courts"
	report_stage_case_types     = "stages.list-case-types"
	report_stage_captcha        = "stages.capture-captcha"
	report_submit_activate      = "submit.activate-link"
	report_submit_extract       = "submit.extract"
	report_submit_pdf_link      = "submit.pdf-link"
	report_pdf_fetch            = "pdf.fetch"
	report_registry_size        = "registry.size"
	report_handler_audit        = "handler.audit"
	report_handler_encode       = "handler.encode"
	report_handler_unclassified = "handler.unclassified"
)
