package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-publisher/core"
)

// maxCallbackBodyBytes bounds the ingress read; provider notification
// payloads are a few KB at most.
const maxCallbackBodyBytes = 1 << 20

// HTTPHandler exposes an Ingress as the single POST callback endpoint.
type HTTPHandler struct {
	Ingress *Ingress
	Logger  core.Logger
}

func NewHTTPHandler(ingress *Ingress) *HTTPHandler {
	return &HTTPHandler{
		Ingress: ingress,
		Logger:  glog.Ensure(nil),
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Ingress == nil {
		http.Error(w, "ingress is not configured", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read request body")
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	result, err := h.Ingress.Handle(r.Context(), InboundRequest{
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		status := result.StatusCode
		if status == 0 {
			status = errorStatus(err)
		}
		h.logger().Error("callback rejected",
			"status", status,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSONError(w, status, err.Error())
		return
	}

	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(result.Body) > 0 {
		_, _ = w.Write(result.Body)
	}
}

func (h *HTTPHandler) logger() core.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return glog.Ensure(nil)
}

func errorStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
	})
}

var _ http.Handler = (*HTTPHandler)(nil)
