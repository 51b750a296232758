package server

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"civicreport/internal/classify"
	"civicreport/internal/domain"
	"civicreport/internal/route"
	"civicreport/internal/storage/sqlite"
	"civicreport/internal/sweep"
)

func (s *Server) visionContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(s.cfg.VisionTimeoutSeconds)*time.Second)
}

// handleHealthz reports process and database liveness. ?deep=1 also probes
// the vision provider, which costs a model round trip.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	if r.URL.Query().Get("deep") == "1" {
		ctx, cancel := s.visionContext(r.Context())
		defer cancel()
		if err := s.analyzer.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "vision provider unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// handleAnalyze runs vision analysis on a photo without creating a report.
// Citizens use it to preview what the classifier sees. Accepts either a
// multipart "image" part or a JSON body with a base64 image.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var image []byte
	var mimeType string

	if isMultipart(r) {
		var err error
		image, mimeType, err = readImageUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var req analyzeRequest
		if err := parseJSONBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Image != "" {
			decoded, err := base64.StdEncoding.DecodeString(req.Image)
			if err != nil {
				writeError(w, http.StatusBadRequest, "image is not valid base64")
				return
			}
			image = decoded
			mimeType = req.MimeType
		}
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	ctx, cancel := s.visionContext(r.Context())
	defer cancel()
	text, err := s.analyzer.Analyze(ctx, image, mimeType)
	if err != nil {
		writeError(w, http.StatusBadGateway, "vision analysis failed")
		return
	}

	issues := classify.ClassifyResponse(text)
	if issues == nil {
		issues = []classify.DetectedIssue{}
	}
	resp := map[string]any{"issues": issues}
	if len(issues) == 0 {
		resp["message"] = "No civic issues detected in the image"
	}
	writeJSON(w, http.StatusOK, resp)
}

type createReportRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Comments    string           `json:"comments"`
	Categories  []string         `json:"categories"`
	Priority    string           `json:"priority"`
	Location    *domain.Location `json:"location"`
	UserID      string           `json:"user_id"`
}

type createReportResponse struct {
	Report  domain.IssueReport `json:"report"`
	Routing route.Result       `json:"routing"`
	// Committed is false when the routing confidence fell below the
	// auto-commit threshold and the proposal was only suggested.
	Committed bool `json:"routing_committed"`
}

// handleCreateReport accepts a new citizen report. Multipart submissions may
// carry a photo, which is analyzed inline; JSON submissions are text-only.
// Every report gets a routing proposal, committed when confident enough.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	var image []byte
	var mimeType string

	if isMultipart(r) {
		var err error
		image, mimeType, err = readImageUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.Comments = r.FormValue("comments")
		req.Priority = r.FormValue("priority")
		req.UserID = r.FormValue("user_id")
		if raw := r.FormValue("categories"); raw != "" {
			for _, c := range strings.Split(raw, ",") {
				if c = strings.TrimSpace(c); c != "" {
					req.Categories = append(req.Categories, c)
				}
			}
		}
		if addr := r.FormValue("address"); addr != "" {
			req.Location = &domain.Location{Address: addr}
			if lat, err := strconv.ParseFloat(r.FormValue("lat"), 64); err == nil {
				req.Location.Lat = lat
			}
			if lng, err := strconv.ParseFloat(r.FormValue("lng"), 64); err == nil {
				req.Location.Lng = lng
			}
		}
	} else {
		if err := parseJSONBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(req.Priority) {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}

	var detected []domain.DetectedIssue
	if len(image) > 0 {
		ctx, cancel := s.visionContext(r.Context())
		text, err := s.analyzer.Analyze(ctx, image, mimeType)
		cancel()
		if err != nil {
			writeError(w, http.StatusBadGateway, "vision analysis failed")
			return
		}
		detected = classify.ClassifyResponse(text)
	}

	for i, c := range req.Categories {
		req.Categories[i] = classify.NormalizeCategory(c)
	}

	now := time.Now().UTC()
	report := domain.IssueReport{
		ID:             uuid.NewString(),
		Image:          image,
		ImageMimeType:  mimeType,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Comments:       req.Comments,
		Categories:     req.Categories,
		DetectedIssues: detected,
		Priority:       req.Priority,
		Status:         domain.StatusSubmitted,
		Location:       req.Location,
		UserID:         req.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := sqlite.InsertReport(s.db, report); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store report")
		return
	}

	proposal := route.AutoAssign(route.IssueFrom(report))
	committed := proposal.Confidence >= s.cfg.AutoCommitThreshold
	if committed {
		if err := sqlite.AssignDepartment(s.db, report.ID, proposal.DepartmentID, proposal.Confidence, proposal.Reasoning); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to assign department")
			return
		}
		report.DepartmentID = proposal.DepartmentID
		report.AssignConfidence = proposal.Confidence
		report.AssignReasoning = proposal.Reasoning
	} else {
		s.notifier.RoutingSuggestion(&report, proposal)
	}

	if report.Priority == domain.PriorityUrgent || report.Priority == domain.PriorityEmergency {
		s.notifier.UrgentReport(&report)
	}

	writeJSON(w, http.StatusCreated, createReportResponse{
		Report:    report,
		Routing:   proposal,
		Committed: committed,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	filter := sqlite.ReportFilter{
		Status:       r.URL.Query().Get("status"),
		Category:     r.URL.Query().Get("category"),
		DepartmentID: r.URL.Query().Get("department"),
	}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	reports, err := sqlite.ListReports(s.db, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []domain.IssueReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := sqlite.GetReportByID(s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	history, err := sqlite.GetStatusHistory(s.db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load status history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":  report,
		"history": history,
	})
}

type departmentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OpenReports int    `json:"open_reports"`
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	workloads, err := sqlite.DepartmentWorkloads(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load workloads")
		return
	}

	departments := make([]departmentInfo, 0, len(route.DepartmentIDs()))
	for _, id := range route.DepartmentIDs() {
		departments = append(departments, departmentInfo{
			ID:          id,
			Name:        route.DepartmentName(id),
			OpenReports: workloads[id],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": departments})
}

type assignRequest struct {
	// DepartmentID forces a manual assignment. When empty the router
	// proposes one.
	DepartmentID string `json:"department_id"`
	// Confirm commits a routing proposal even below the auto-commit
	// threshold.
	Confirm bool `json:"confirm"`
	// Rebalance picks the least-loaded department among the proposal and
	// its alternatives.
	Rebalance bool   `json:"rebalance"`
	UpdatedBy string `json:"updated_by"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req assignRequest
	if r.ContentLength != 0 {
		if err := parseJSONBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	report, err := sqlite.GetReportByID(s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	var result route.Result
	committed := true
	if req.DepartmentID != "" {
		if !knownDepartment(req.DepartmentID) {
			writeError(w, http.StatusBadRequest, "unknown department")
			return
		}
		result = route.Result{
			DepartmentID: req.DepartmentID,
			Confidence:   1.0,
			Reasoning:    "Manual assignment",
		}
	} else {
		result = route.AutoAssign(route.IssueFrom(report))
		if req.Rebalance && result.Confidence < s.cfg.AutoCommitThreshold && len(result.AlternativeDepartments) > 0 {
			workloads, err := sqlite.DepartmentWorkloads(s.db)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load workloads")
				return
			}
			candidates := append([]string{result.DepartmentID}, result.AlternativeDepartments...)
			if balanced := route.LoadBalanced(candidates, workloads); balanced != result.DepartmentID {
				result.DepartmentID = balanced
				result.Reasoning += "; rebalanced to " + route.DepartmentName(balanced)
			}
		}
		committed = result.Confidence >= s.cfg.AutoCommitThreshold || req.Confirm
	}

	if committed {
		if err := sqlite.AssignDepartment(s.db, id, result.DepartmentID, result.Confidence, result.Reasoning); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to assign department")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"routing": result, "committed": committed})
}

func knownDepartment(id string) bool {
	for _, known := range route.DepartmentIDs() {
		if known == id {
			return true
		}
	}
	return false
}

type statusRequest struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	UpdatedBy string `json:"updated_by"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req statusRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !domain.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	err := sqlite.UpdateReportStatus(s.db, id, req.Status, req.Message, req.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	history, err := sqlite.GetStatusHistory(s.db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load status history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reportStats, err := sqlite.GetReportStats(s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reportStats,
		"routing": route.RoutingStats(),
	})
}

// handleSweep triggers an immediate assignment sweep, same as the scheduled
// one but without the minimum-age delay being configurable per call.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	minAge := time.Duration(s.cfg.SweepMinAgeMinutes) * time.Minute
	result, err := sweep.ProcessOnce(s.db, s.notifier, s.cfg.AutoCommitThreshold, time.Now().UTC().Add(-minAge))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scanned":   result.Scanned,
		"assigned":  result.Assigned,
		"suggested": result.Suggested,
		"summary":   sweep.FormatSummary(result),
	})
}
