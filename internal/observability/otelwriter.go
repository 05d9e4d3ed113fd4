package observability

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// OTelWriter bridges zerolog's JSON output into the OTel log exporter:
// it implements io.Writer, parses each line, and re-emits it as an OTLP
// log record so search runs are observable in the same backend as their
// spans and metrics.
type OTelWriter struct {
	logger log.Logger
}

// NewOTelWriter returns a writer emitting through the global OTLP log
// provider under the given instrumentation name.
func NewOTelWriter(name string) *OTelWriter {
	return &OTelWriter{logger: global.GetLoggerProvider().Logger(name)}
}

// Write parses one zerolog JSON line and emits it as a log record. Lines
// that are not valid JSON are forwarded verbatim as an info-level body.
func (w *OTelWriter) Write(p []byte) (int, error) {
	var rec log.Record

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		rec.SetTimestamp(time.Now())
		rec.SetSeverity(log.SeverityInfo)
		rec.SetBody(log.StringValue(string(p)))
		w.logger.Emit(context.Background(), rec)
		return len(p), nil
	}

	rec.SetTimestamp(entryTime(entry))
	if lvl, ok := entry["level"].(string); ok {
		rec.SetSeverity(severityFor(lvl))
		rec.SetSeverityText(lvl)
		delete(entry, "level")
	} else {
		rec.SetSeverity(log.SeverityInfo)
		rec.SetSeverityText("info")
	}
	if msg, ok := entry["message"].(string); ok {
		rec.SetBody(log.StringValue(msg))
		delete(entry, "message")
	} else if msg, ok := entry["msg"].(string); ok {
		rec.SetBody(log.StringValue(msg))
		delete(entry, "msg")
	}

	attrs := make([]log.KeyValue, 0, len(entry))
	for k, v := range entry {
		attrs = append(attrs, log.KeyValue{Key: k, Value: logValue(v)})
	}
	rec.AddAttributes(attrs...)

	w.logger.Emit(context.Background(), rec)
	return len(p), nil
}

func entryTime(entry map[string]any) time.Time {
	if ts, ok := entry["time"].(string); ok {
		delete(entry, "time")
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	}
	return time.Now()
}

func severityFor(level string) log.Severity {
	switch level {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal":
		return log.SeverityFatal
	case "panic":
		return log.SeverityFatal4
	default:
		return log.SeverityInfo
	}
}

func logValue(v any) log.Value {
	switch val := v.(type) {
	case string:
		return log.StringValue(val)
	case int:
		return log.IntValue(val)
	case int64:
		return log.Int64Value(val)
	case float64:
		return log.Float64Value(val)
	case bool:
		return log.BoolValue(val)
	case nil:
		return log.StringValue("")
	default:
		if b, err := json.Marshal(val); err == nil {
			return log.StringValue(string(b))
		}
		return log.StringValue("")
	}
}
