// Package traces - трассировка OpenTelemetry для оплаты и фоновых задач.
package traces

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ignatzorin/amhang-backend"

// Init поднимает провайдер трассировки.
// Без endpoint трассировка выключена, возвращается пустая функция остановки.
func Init(ctx context.Context, otlpEndpoint, serviceName string, log logrus.FieldLogger) (func(context.Context) error, error) {
	if otlpEndpoint == "" {
		log.Info("traces: трассировка выключена (OTEL_EXPORTER_OTLP_ENDPOINT не задан)")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.WithField("endpoint", otlpEndpoint).Info("traces: трассировка включена")
	return tp.Shutdown, nil
}

// StartSpan открывает span с атрибутами.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError помечает span ошибкой, nil игнорируется.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func MissionID(id string) attribute.KeyValue {
	return attribute.String("mission.id", id)
}

func EscrowID(id string) attribute.KeyValue {
	return attribute.String("escrow.id", id)
}

func OrderID(id string) attribute.KeyValue {
	return attribute.String("payment.order_id", id)
}

func Amount(amount int64) attribute.KeyValue {
	return attribute.Int64("payment.amount", amount)
}

func Job(name string) attribute.KeyValue {
	return attribute.String("job.name", name)
}
