package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeResponse encodes data as JSON, or as MessagePack when the query asks
// for format=msgpack, and returns the body with its content type.
func encodeResponse(r *http.Request, data any) ([]byte, string, error) {
	var buf bytes.Buffer
	if r.URL.Query().Get("format") == "msgpack" {
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(data); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/x-msgpack", nil
	}
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "application/json", nil
}

// writeBody sends an already encoded body. Once it is called the status line
// is committed, so a failure here can only be logged.
func writeBody(w http.ResponseWriter, code int, body []byte, contentType string) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_, err := w.Write(body)
	return err
}

// writeResponse encodes and sends data. An encoding failure becomes a 500;
// a write failure is returned for the caller to log.
func writeResponse(w http.ResponseWriter, r *http.Request, code int, data any) error {
	body, contentType, err := encodeResponse(r, data)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "could not encode response"})
		return fmt.Errorf("encode response: %w", err)
	}
	if err := writeBody(w, code, body, contentType); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error       string `json:"error"`
	MaxElements int    `json:"max_elements,omitempty"`
}

// writeError sends an error body. errorResponse always encodes, and a write
// failure leaves nothing more to tell the client.
func writeError(w http.ResponseWriter, r *http.Request, code int, resp errorResponse) {
	body, contentType, err := encodeResponse(r, resp)
	if err != nil {
		http.Error(w, resp.Error, code)
		return
	}
	_ = writeBody(w, code, body, contentType)
}
