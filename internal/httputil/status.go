package httputil

import "net/http"

// StatusRecorder wraps an http.ResponseWriter to capture the status code and
// body size. It forwards Flush so SSE handlers keep working behind middleware,
// and Unwrap so http.ResponseController reaches the underlying connection.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int64
	wrote      bool
}

// NewStatusRecorder returns a recorder defaulting to 200 OK.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	if !sr.wrote {
		sr.StatusCode = code
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(b []byte) (int, error) {
	sr.wrote = true
	n, err := sr.ResponseWriter.Write(b)
	sr.Bytes += int64(n)
	return n, err
}

func (sr *StatusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *StatusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
