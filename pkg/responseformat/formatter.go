package responseformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// MaxBodyBytes caps the size of request bodies accepted by DecodeRequest
const MaxBodyBytes = 64 << 20

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WantsMsgPack reports whether the client asked for MessagePack, either with
// format=msgpack or through the Accept header. JSON is the default.
func WantsMsgPack(req *http.Request) bool {
	if req.URL.Query().Get("format") == "msgpack" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), ContentTypeMsgPack)
}

// WriteResponse writes data with a 200 status
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	return f.WriteStatus(w, req, http.StatusOK, data, headers)
}

// WriteStatus writes data with the given status in the format the client asked for
func (f *Formatter) WriteStatus(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		return f.writeMsgPack(w, status, data)
	}
	return f.writeJSON(w, status, data)
}

// WriteError writes an ErrorBody
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, kind string, err error, details any) error {
	return f.WriteStatus(w, req, status, ErrorBody{Error: err.Error(), Kind: kind, Details: details}, nil)
}

// DecodeRequest decodes the request body into v. MessagePack bodies are
// recognized by their Content-Type; anything else is read as JSON.
func DecodeRequest(req *http.Request, v any) error {
	return decode(req.Header.Get("Content-Type"), io.LimitReader(req.Body, MaxBodyBytes), v)
}

// ReadBody reads up to MaxBodyBytes of the request body so it can be decoded
// more than once with DecodeBody.
func ReadBody(req *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(req.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

// DecodeBody decodes a body returned by ReadBody the same way DecodeRequest
// would.
func DecodeBody(contentType string, data []byte, v any) error {
	return decode(contentType, bytes.NewReader(data), v)
}

func decode(contentType string, body io.Reader, v any) error {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case ContentTypeMsgPack, "application/msgpack", "application/vnd.msgpack":
		dec := msgpack.NewDecoder(body)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("invalid msgpack body: %w", err)
		}
	default:
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	return nil
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeMsgPack)
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
