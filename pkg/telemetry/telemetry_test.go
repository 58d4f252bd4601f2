package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitExportsSpans(t *testing.T) {
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	var buf bytes.Buffer
	shutdown, err := Init(&buf, "test")
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "lex")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "lex"`)
	assert.Contains(t, buf.String(), "cppillr")
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(nil, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
