package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pincheck/pkg/buildinfo"
	"github.com/matzehuels/pincheck/pkg/check"
	"github.com/matzehuels/pincheck/pkg/errors"
	"github.com/matzehuels/pincheck/pkg/observability"
)

const cacheKeyType = "report"

var contentTypes = map[check.Format]string{
	check.FormatJSON: "application/json",
	check.FormatYAML: "application/yaml",
	check.FormatText: "text/plain; charset=utf-8",
}

// errorBody is the JSON body of every non-2xx response.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format := check.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := check.ParseFormat(q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		format = f
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeErrorBody(w, r, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput,
				"request body exceeds limit")
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not read request body"))
		return
	}

	var req CheckRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}

	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	env, err := req.env(s.config.Env)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := s.keyer.ReportKey(body, string(format), env)
	hooks := observability.Cache()
	if data, hit, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("Cache read failed", "error", err)
	} else if hit {
		hooks.OnCacheHit(ctx, cacheKeyType)
		writeBytes(w, contentTypes[format], data)
		return
	}
	hooks.OnCacheMiss(ctx, cacheKeyType)

	report, err := check.Run(ctx, in, check.Options{Env: env})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("Checked", "target", report.Target, "run_id", report.RunID,
		"errors", report.Errors, "warnings", report.Warnings)

	var buf bytes.Buffer
	if err := check.NewFormatter(format).Format(&buf, report); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "could not encode report"))
		return
	}

	if err := s.cache.Set(ctx, key, buf.Bytes(), s.config.CacheTTL); err != nil {
		s.logger.Warn("Cache write failed", "error", err)
	} else {
		hooks.OnCacheSet(ctx, cacheKeyType, buf.Len())
	}
	writeBytes(w, contentTypes[format], buf.Bytes())
}

// writeError maps err to a status code: input problems are 400, anything
// else is 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := http.StatusBadRequest
	switch code {
	case "", errors.ErrCodeInternal:
		status = http.StatusInternalServerError
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		if code == "" {
			code = errors.ErrCodeInternal
		}
	}
	writeErrorBody(w, r, status, code, errors.UserMessage(err))
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, code errors.Code, msg string) {
	var body errorBody
	body.Error.Code = string(code)
	body.Error.Message = msg
	body.Error.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are sent; an encoding error cannot be reported to the client.
	_ = json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
