package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupNone(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Options{Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "billpay-test",
		Exporter:    ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "render-bills")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "render-bills")
	assert.Contains(t, buf.String(), "billpay-test")
}
