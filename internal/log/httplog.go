package log

import (
	"io"
	"strings"

	"go.uber.org/zap"
)

// httpLogWriter turns each Apache-style access log line written by the HTTP
// middleware into an info entry on the "http" logger.
type httpLogWriter struct {
	logger *zap.SugaredLogger
}

// HTTPAccessWriter returns a writer suitable for gorilla/handlers access logging.
func HTTPAccessWriter() io.Writer {
	return &httpLogWriter{logger: Named("http")}
}

func (w *httpLogWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line != "" {
		w.logger.Info(line)
	}
	return len(p), nil
}

// RecoveryLogger adapts the package logger to the Println interface used by
// gorilla/handlers panic recovery.
type RecoveryLogger struct{}

func (RecoveryLogger) Println(args ...interface{}) {
	Named("http").Error(args...)
}
