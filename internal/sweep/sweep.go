// Package sweep periodically picks up reports that were submitted without a
// department assignment and runs them through routing. High-confidence
// proposals are committed; the rest are surfaced to operators as suggestions.
package sweep

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"civicreport/internal/notify"
	"civicreport/internal/route"
	"civicreport/internal/storage/sqlite"
)

// Result tracks separate counters for each sweep outcome.
type Result struct {
	Scanned   int
	Assigned  int
	Suggested int
	Errors    []string
}

// ProcessOnce routes every unassigned report created before cutoff. It has
// no scheduler dependency so it can be called from tests and admin tooling.
func ProcessOnce(db *sql.DB, notifier notify.Notifier, threshold float64, cutoff time.Time) (Result, error) {
	reports, err := sqlite.ListUnassignedBefore(db, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("listing unassigned reports: %w", err)
	}

	var result Result
	result.Scanned = len(reports)
	for i := range reports {
		report := &reports[i]
		proposal := route.AutoAssign(route.IssueFrom(*report))

		if proposal.Confidence < threshold {
			log.Printf("sweep suggest report=%s dept=%s confidence=%.2f", report.ID, proposal.DepartmentID, proposal.Confidence)
			notifier.RoutingSuggestion(report, proposal)
			result.Suggested++
			continue
		}

		if err := sqlite.AssignDepartment(db, report.ID, proposal.DepartmentID, proposal.Confidence, proposal.Reasoning); err != nil {
			log.Printf("sweep assign error report=%s: %v", report.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", report.ID, err))
			continue
		}
		log.Printf("sweep assigned report=%s dept=%s confidence=%.2f", report.ID, proposal.DepartmentID, proposal.Confidence)
		result.Assigned++
	}
	return result, nil
}

// FormatSummary renders a one-line sweep outcome for logs and notifications.
func FormatSummary(result Result) string {
	msg := fmt.Sprintf("Swept %d unassigned reports: %d assigned, %d suggested", result.Scanned, result.Assigned, result.Suggested)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartScheduler starts a cron-based loop running ProcessOnce. The schedule
// is a standard 5-field cron expression (minute hour day-of-month month
// day-of-week). Examples: "*/15 * * * *" (every 15 minutes), "0 * * * *"
// (hourly).
func StartScheduler(schedule string, minAge time.Duration, db *sql.DB, notifier notify.Notifier, threshold float64) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Assignment sweep disabled (sweep_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid sweep_schedule '%s': %v — sweep disabled", schedule, err)
		return
	}

	log.Printf("Assignment sweep scheduled (cron: %s, min age: %s)", schedule, minAge)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, sweepErr := ProcessOnce(db, notifier, threshold, time.Now().UTC().Add(-minAge))
			if sweepErr != nil {
				log.Printf("Sweep error: %v", sweepErr)
				continue
			}
			log.Printf("Sweep complete: %s", FormatSummary(result))
		}
	}()
}
