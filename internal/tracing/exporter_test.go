package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func readLines(t *testing.T, path string) []SpanLine {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []SpanLine
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l SpanLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		lines = append(lines, l)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestFileExporter_WritesSpansWithEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, parent := tp.Tracer("test").Start(context.Background(), SpanRun)
	parent.SetAttributes(attribute.String(AttrRunID, "r-1"))
	parent.AddEvent(EventStopRequested)
	parent.SetStatus(codes.Error, "boom")
	_, child := tp.Tracer("test").Start(ctx, SpanHighlight)
	child.End()
	parent.End()

	require.NoError(t, exp.ExportSpans(context.Background(), rec.Ended()))
	require.NoError(t, exp.Shutdown(context.Background()))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	byName := map[string]SpanLine{}
	for _, l := range lines {
		byName[l.Name] = l
	}
	run := byName[SpanRun]
	require.Equal(t, "ERROR", run.Status)
	require.Equal(t, "boom", run.StatusMsg)
	require.Equal(t, "r-1", run.Attributes[AttrRunID])
	require.Len(t, run.Events, 1)
	require.Equal(t, EventStopRequested, run.Events[0].Name)
	require.Equal(t, run.SpanID, byName[SpanHighlight].ParentID)
	require.Equal(t, "UNSET", byName[SpanHighlight].Status)
}

func TestFileExporter_AppendsAndClosesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"old"}`+"\n"), 0600))

	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	require.NoError(t, exp.ExportSpans(context.Background(), nil))
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))

	err = exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{nil})
	require.True(t, errors.Is(err, os.ErrClosed))

	require.Len(t, readLines(t, path), 1)
}
