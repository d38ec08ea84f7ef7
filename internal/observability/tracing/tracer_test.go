package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGetTracer_FollowsGlobalProvider(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())

	_, span := GetTracer().Start(context.Background(), "genai.generate")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "genai.generate" {
		t.Errorf("expected span name 'genai.generate', got %q", spans[0].Name)
	}
	if spans[0].InstrumentationScope.Name != InstrumentationName {
		t.Errorf("expected scope %q, got %q", InstrumentationName, spans[0].InstrumentationScope.Name)
	}
}

func TestRecordError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := tp.Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	RecordError(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	RecordError(failed, errors.New("provider unavailable"))
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Unset {
		t.Errorf("expected unset status for nil error, got %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "provider unavailable" {
		t.Errorf("expected error status, got %+v", spans[1].Status)
	}
	if len(spans[1].Events) != 1 {
		t.Errorf("expected one exception event, got %d", len(spans[1].Events))
	}
}

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))

	_, span := tp.Tracer("test").Start(context.Background(), "genai.attempt")
	span.SetAttributes(attribute.Int("genai.attempt", 2))
	span.End()
	_ = tp.Shutdown(context.Background())

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "span finished" {
		t.Errorf("expected msg 'span finished', got %v", entry["msg"])
	}
	if entry["span"] != "genai.attempt" {
		t.Errorf("expected span 'genai.attempt', got %v", entry["span"])
	}
	if entry["genai.attempt"] != "2" {
		t.Errorf("expected attribute genai.attempt=2, got %v", entry["genai.attempt"])
	}
}

func TestSetup(t *testing.T) {
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())

	shutdown := Setup(slog.Default())
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("expected SDK tracer provider, got %T", otel.GetTracerProvider())
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
}
