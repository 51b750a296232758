// Package notify pushes operator alerts for reports that need human
// attention: urgent submissions and routing decisions below the auto-commit
// threshold.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"civicreport/internal/domain"
	"civicreport/internal/route"
)

type Notifier interface {
	UrgentReport(report *domain.IssueReport)
	RoutingSuggestion(report *domain.IssueReport, result route.Result)
}

// SlackNotifier posts to a single admin channel. Delivery failures are
// logged and swallowed; notifications never block report handling.
type SlackNotifier struct {
	api       *slack.Client
	channelID string
}

func NewSlack(botToken, channelID string) *SlackNotifier {
	return &SlackNotifier{
		api:       slack.New(botToken),
		channelID: channelID,
	}
}

func (n *SlackNotifier) UrgentReport(report *domain.IssueReport) {
	address := ""
	if report.Location != nil {
		address = report.Location.Address
	}
	msg := fmt.Sprintf(":rotating_light: *%s report* %s\n%s\nDepartment: %s (%s)\nAddress: %s",
		report.Priority, report.ID, report.Title,
		report.DepartmentID, route.DepartmentName(report.DepartmentID), address)
	if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false)); err != nil {
		log.Printf("slack notify failed report=%s err=%v", report.ID, err)
	}
}

func (n *SlackNotifier) RoutingSuggestion(report *domain.IssueReport, result route.Result) {
	msg := fmt.Sprintf("Routing suggestion for report %s: %s (%s) at confidence %.2f\n%s\nNeeds manual confirmation.",
		report.ID, result.DepartmentID, route.DepartmentName(result.DepartmentID),
		result.Confidence, result.Reasoning)
	if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false)); err != nil {
		log.Printf("slack notify failed report=%s err=%v", report.ID, err)
	}
}

// Noop is used when Slack is not configured.
type Noop struct{}

func (Noop) UrgentReport(*domain.IssueReport)                    {}
func (Noop) RoutingSuggestion(*domain.IssueReport, route.Result) {}
