// Package sqlite persists issue reports and their status history.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"civicreport/internal/domain"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id                TEXT PRIMARY KEY,
		image             BLOB,
		image_mime_type   TEXT DEFAULT 'image/jpeg',
		title             TEXT DEFAULT '',
		description       TEXT DEFAULT '',
		comments          TEXT DEFAULT '',
		categories        TEXT DEFAULT '',
		detected_issues   TEXT DEFAULT '[]',
		priority          TEXT DEFAULT 'medium',
		status            TEXT DEFAULT 'submitted',
		lat               REAL,
		lng               REAL,
		address           TEXT DEFAULT '',
		user_id           TEXT DEFAULT '',
		department_id     TEXT DEFAULT '',
		assign_confidence REAL DEFAULT 0,
		assign_reasoning  TEXT DEFAULT '',
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
	CREATE INDEX IF NOT EXISTS idx_reports_department ON reports(department_id);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);

	CREATE TABLE IF NOT EXISTS status_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id  TEXT NOT NULL,
		status     TEXT NOT NULL,
		message    TEXT DEFAULT '',
		updated_by TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sh_report ON status_history(report_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func marshalDetectedIssues(issues []domain.DetectedIssue) (string, error) {
	if issues == nil {
		issues = []domain.DetectedIssue{}
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return "", fmt.Errorf("marshaling detected issues: %w", err)
	}
	return string(data), nil
}

func joinCategories(categories []string) string {
	var out []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, ",")
}

func splitCategories(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// InsertReport stores a new report and seeds its status history in one
// transaction.
func InsertReport(db *sql.DB, report domain.IssueReport) error {
	detected, err := marshalDetectedIssues(report.DetectedIssues)
	if err != nil {
		return err
	}

	var lat, lng sql.NullFloat64
	address := ""
	if report.Location != nil {
		lat = sql.NullFloat64{Float64: report.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: report.Location.Lng, Valid: true}
		address = report.Location.Address
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO reports
		 (id, image, image_mime_type, title, description, comments, categories, detected_issues,
		  priority, status, lat, lng, address, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Image, report.ImageMimeType, report.Title, report.Description,
		report.Comments, joinCategories(report.Categories), detected,
		report.Priority, report.Status, lat, lng, address, report.UserID,
		report.CreatedAt, report.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO status_history (report_id, status, message, updated_by)
		 VALUES (?, ?, ?, ?)`,
		report.ID, report.Status, "Report submitted", report.UserID,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const reportColumns = `id, image, image_mime_type, title, description, comments, categories,
	detected_issues, priority, status, lat, lng, address, user_id,
	department_id, assign_confidence, assign_reasoning, created_at, updated_at`

func scanReport(scan func(dest ...any) error) (domain.IssueReport, error) {
	var r domain.IssueReport
	var categories, detected string
	var lat, lng sql.NullFloat64
	var address string

	err := scan(
		&r.ID, &r.Image, &r.ImageMimeType, &r.Title, &r.Description, &r.Comments,
		&categories, &detected, &r.Priority, &r.Status, &lat, &lng, &address,
		&r.UserID, &r.DepartmentID, &r.AssignConfidence, &r.AssignReasoning,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	r.Categories = splitCategories(categories)
	if err := json.Unmarshal([]byte(detected), &r.DetectedIssues); err != nil {
		return r, fmt.Errorf("unmarshaling detected issues for report %s: %w", r.ID, err)
	}
	if lat.Valid && lng.Valid {
		r.Location = &domain.Location{Lat: lat.Float64, Lng: lng.Float64, Address: address}
	}
	return r, nil
}

func GetReportByID(db *sql.DB, id string) (domain.IssueReport, error) {
	row := db.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row.Scan)
}

// ReportFilter narrows ListReports. Zero values mean "no constraint".
type ReportFilter struct {
	Status       string
	Category     string
	DepartmentID string
	Limit        int
}

func ListReports(db *sql.DB, filter ReportFilter) ([]domain.IssueReport, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		// Categories are stored comma-joined; match as a delimited token.
		clauses = append(clauses, "(',' || categories || ',') LIKE ?")
		args = append(args, "%,"+filter.Category+",%")
	}
	if filter.DepartmentID != "" {
		clauses = append(clauses, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.IssueReport
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// UpdateReportStatus transitions a report and appends to its history.
func UpdateReportStatus(db *sql.DB, id, status, message, updatedBy string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE reports SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	_, err = tx.Exec(
		`INSERT INTO status_history (report_id, status, message, updated_by)
		 VALUES (?, ?, ?, ?)`,
		id, status, message, updatedBy,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// AssignDepartment records a committed routing decision on the report.
func AssignDepartment(db *sql.DB, id, departmentID string, confidence float64, reasoning string) error {
	res, err := db.Exec(
		`UPDATE reports
		 SET department_id = ?, assign_confidence = ?, assign_reasoning = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		departmentID, confidence, reasoning, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func GetStatusHistory(db *sql.DB, reportID string) ([]domain.StatusUpdate, error) {
	rows, err := db.Query(
		`SELECT id, report_id, status, message, updated_by, created_at
		 FROM status_history WHERE report_id = ? ORDER BY created_at ASC, id ASC`,
		reportID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []domain.StatusUpdate
	for rows.Next() {
		var u domain.StatusUpdate
		if err := rows.Scan(&u.ID, &u.ReportID, &u.Status, &u.Message, &u.UpdatedBy, &u.CreatedAt); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// DepartmentWorkloads counts open reports per assigned department. Reports
// that are resolved, rejected or closed no longer count.
func DepartmentWorkloads(db *sql.DB) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT department_id, COUNT(*) FROM reports
		 WHERE department_id <> '' AND status NOT IN ('resolved', 'rejected', 'closed')
		 GROUP BY department_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workloads := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		workloads[id] = count
	}
	return workloads, rows.Err()
}

// ListUnassignedBefore returns reports with no department that were submitted
// before the cutoff. Used by the auto-assign sweep.
func ListUnassignedBefore(db *sql.DB, cutoff time.Time) ([]domain.IssueReport, error) {
	rows, err := db.Query(
		`SELECT `+reportColumns+` FROM reports
		 WHERE department_id = '' AND created_at < ?
		   AND status NOT IN ('resolved', 'rejected', 'closed')
		 ORDER BY created_at ASC, id ASC`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.IssueReport
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// --- Report Stats ---

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type ReportStats struct {
	TotalReports    int             `json:"total_reports"`
	ByStatus        map[string]int  `json:"by_status"`
	UrgentReports   int             `json:"urgent_reports"`
	EmergencyCount  int             `json:"emergency_reports"`
	UnassignedCount int             `json:"unassigned_reports"`
	CategoryCounts  []CategoryCount `json:"category_breakdown"`
}

func GetReportStats(db *sql.DB) (ReportStats, error) {
	stats := ReportStats{ByStatus: make(map[string]int)}

	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN priority = 'urgent' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN priority = 'emergency' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN department_id = '' THEN 1 ELSE 0 END), 0)
		 FROM reports`,
	).Scan(&stats.TotalReports, &stats.UrgentReports, &stats.EmergencyCount, &stats.UnassignedCount)
	if err != nil {
		return stats, err
	}

	rows, err := db.Query(`SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	// Category breakdown counts each category once per report, so the sums
	// can exceed the report total when reports carry multiple categories.
	catRows, err := db.Query(`SELECT categories FROM reports WHERE categories <> ''`)
	if err != nil {
		return stats, err
	}
	defer catRows.Close()

	counts := make(map[string]int)
	var order []string
	for catRows.Next() {
		var raw string
		if err := catRows.Scan(&raw); err != nil {
			return stats, err
		}
		for _, category := range splitCategories(raw) {
			if counts[category] == 0 {
				order = append(order, category)
			}
			counts[category]++
		}
	}
	if err := catRows.Err(); err != nil {
		return stats, err
	}
	for _, category := range order {
		stats.CategoryCounts = append(stats.CategoryCounts, CategoryCount{Category: category, Count: counts[category]})
	}
	return stats, nil
}
