package route

import "civicreport/internal/domain"

// IssueFrom flattens a stored report into routing input. The category is
// the highest-confidence detected issue, falling back to the first manual
// category when vision found nothing.
func IssueFrom(report domain.IssueReport) Issue {
	category := ""
	best := -1.0
	for _, detected := range report.DetectedIssues {
		if detected.Confidence > best {
			category = detected.Category
			best = detected.Confidence
		}
	}
	if category == "" && len(report.Categories) > 0 {
		category = report.Categories[0]
	}

	address := ""
	if report.Location != nil {
		address = report.Location.Address
	}

	return Issue{
		Category:    category,
		Title:       report.Title,
		Description: report.Description,
		Priority:    report.Priority,
		Address:     address,
	}
}
