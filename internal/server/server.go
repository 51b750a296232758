// Package server exposes the citizen and admin HTTP APIs.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"civicreport/internal/config"
	"civicreport/internal/notify"
	"civicreport/internal/vision"
)

// maxImageBytes bounds uploaded report photos. Matches typical phone camera
// output with headroom.
const maxImageBytes = 10 << 20

type Server struct {
	db       *sql.DB
	analyzer vision.Analyzer
	notifier notify.Notifier
	cfg      config.Config
}

func New(db *sql.DB, analyzer vision.Analyzer, notifier notify.Notifier, cfg config.Config) *Server {
	return &Server{db: db, analyzer: analyzer, notifier: notifier, cfg: cfg}
}

// Routes wires every endpoint onto a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /api/analyze", withLogging(s.handleAnalyze))
	mux.HandleFunc("POST /api/reports", withLogging(s.handleCreateReport))
	mux.HandleFunc("GET /api/reports", withLogging(s.handleListReports))
	mux.HandleFunc("GET /api/reports/{id}", withLogging(s.handleGetReport))
	mux.HandleFunc("GET /api/departments", withLogging(s.handleDepartments))

	mux.HandleFunc("POST /api/admin/reports/{id}/assign", withLogging(s.handleAssign))
	mux.HandleFunc("PATCH /api/admin/reports/{id}/status", withLogging(s.handleUpdateStatus))
	mux.HandleFunc("GET /api/admin/stats", withLogging(s.handleStats))
	mux.HandleFunc("POST /api/admin/sweep", withLogging(s.handleSweep))

	return mux
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		log.Printf("http %s %s remote=%s duration=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start).Round(time.Millisecond))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("http encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxImageBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// readImageUpload pulls the "image" part out of a multipart request. A
// missing part is not an error; image-less reports are allowed.
func readImageUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, "", fmt.Errorf("parsing multipart form: %w", err)
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading image upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image upload: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, imageMimeType(header), nil
}

func imageMimeType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	name := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
