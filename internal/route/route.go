// Package route assigns civic issues to handling departments. Four strategies
// run in strict order per call — direct category match, keyword text analysis,
// location analysis, priority default — stopping at the first that clears its
// acceptance threshold. Every tier has a total fallback, so routing never
// fails for business reasons; only a malformed rule table (caught once at
// startup by ValidateRules) is an error.
package route

import (
	"fmt"
	"math"
	"strings"
)

// Rule is one static routing table entry. Table order is significant: the
// direct-match tier takes the first matching rule, and keyword-score ties
// keep the earlier rule.
type Rule struct {
	CategoryPatterns []string
	DepartmentID     string
	Confidence       float64
	Keywords         []string
	PriorityAffinity []string
}

// Rules is the fixed routing table: roads, sanitation, electrical,
// water/drainage, traffic, parks.
var Rules = []Rule{
	{
		CategoryPatterns: []string{"pothole", "road", "street", "pavement", "asphalt"},
		DepartmentID:     "1",
		Confidence:       0.95,
		Keywords:         []string{"road", "street", "pothole", "crack", "repair", "surface"},
		PriorityAffinity: []string{"urgent", "high"},
	},
	{
		CategoryPatterns: []string{"garbage", "waste", "trash", "litter", "cleaning"},
		DepartmentID:     "2",
		Confidence:       0.90,
		Keywords:         []string{"garbage", "trash", "waste", "bin", "collection", "dump"},
		PriorityAffinity: []string{"medium", "high"},
	},
	{
		CategoryPatterns: []string{"streetlight", "electrical", "power", "lighting"},
		DepartmentID:     "3",
		Confidence:       0.95,
		Keywords:         []string{"light", "electrical", "power", "outage", "bulb", "wiring"},
		PriorityAffinity: []string{"high", "urgent"},
	},
	{
		CategoryPatterns: []string{"drainage", "water", "flood", "sewage", "pipe"},
		DepartmentID:     "4",
		Confidence:       0.90,
		Keywords:         []string{"water", "drain", "flood", "sewage", "pipe", "leak"},
		PriorityAffinity: []string{"urgent", "emergency"},
	},
	{
		CategoryPatterns: []string{"traffic", "signal", "sign", "parking"},
		DepartmentID:     "5",
		Confidence:       0.85,
		Keywords:         []string{"traffic", "signal", "sign", "parking", "congestion"},
		PriorityAffinity: []string{"medium", "high"},
	},
	{
		CategoryPatterns: []string{"park", "garden", "tree", "playground"},
		DepartmentID:     "6",
		Confidence:       0.80,
		Keywords:         []string{"park", "garden", "tree", "playground", "bench", "grass"},
		PriorityAffinity: []string{"low", "medium"},
	},
}

// Issue is the routing input shape: a normalized category plus the free text
// and metadata the fallback tiers need.
type Issue struct {
	Category    string
	Title       string
	Description string
	Priority    string
	Address     string
}

// Result is the routing proposal. It is never persisted here; the admin
// surface decides whether to commit it.
type Result struct {
	DepartmentID           string   `json:"department_id"`
	Confidence             float64  `json:"confidence"`
	Reasoning              string   `json:"reasoning"`
	AlternativeDepartments []string `json:"alternative_departments,omitempty"`
}

type locationPattern struct {
	patterns     []string
	departmentID string
	confidence   float64
}

var locationPatterns = []locationPattern{
	{[]string{"park", "garden", "playground"}, "6", 0.8},
	{[]string{"market", "commercial", "business"}, "2", 0.7},
	{[]string{"residential", "colony", "society"}, "1", 0.6},
	{[]string{"highway", "main road", "arterial"}, "5", 0.8},
}

var priorityDefaults = map[string]string{
	"emergency": "4",
	"urgent":    "1",
	"high":      "3",
	"medium":    "2",
	"low":       "6",
}

var priorityOrder = []string{"emergency", "urgent", "high", "medium", "low"}

// AutoAssign proposes exactly one department for the issue. Deterministic:
// the same input always yields the same Result.
func AutoAssign(issue Issue) Result {
	if rule, ok := directCategoryMatch(issue.Category); ok {
		return Result{
			DepartmentID:           rule.DepartmentID,
			Confidence:             rule.Confidence,
			Reasoning:              fmt.Sprintf("Direct category match: %q assigned to %s", issue.Category, DepartmentName(rule.DepartmentID)),
			AlternativeDepartments: []string{},
		}
	}

	if result := analyzeText(issue); result.Confidence > 0.7 {
		return result
	}

	if result := analyzeLocation(issue.Address); result.Confidence > 0.6 {
		return result
	}

	return defaultAssignment(issue.Priority)
}

// directCategoryMatch scans the rule table for a bidirectional substring
// match against the issue category. First matching rule wins. An empty
// category never matches (it would trivially be contained in every pattern).
func directCategoryMatch(category string) (Rule, bool) {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return Rule{}, false
	}
	for _, rule := range Rules {
		for _, pattern := range rule.CategoryPatterns {
			if strings.Contains(normalized, pattern) || strings.Contains(pattern, normalized) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

// analyzeText scores every rule against the issue's combined title and
// description: +0.3 per category pattern, +0.2 per keyword, +0.1 when the
// priority is in the rule's affinity list. Strict first-max tie-break.
func analyzeText(issue Issue) Result {
	combined := strings.ToLower(issue.Title + " " + issue.Description)

	type candidate struct {
		rule    Rule
		score   float64
		matched []string
	}
	var scored []candidate
	for _, rule := range Rules {
		score := 0.0
		var matched []string
		for _, pattern := range rule.CategoryPatterns {
			if strings.Contains(combined, pattern) {
				score += 0.3
				matched = append(matched, pattern)
			}
		}
		for _, keyword := range rule.Keywords {
			if strings.Contains(combined, keyword) {
				score += 0.2
				matched = append(matched, keyword)
			}
		}
		for _, priority := range rule.PriorityAffinity {
			if priority == issue.Priority {
				score += 0.1
				break
			}
		}
		if score > 0 {
			scored = append(scored, candidate{rule, score, matched})
		}
	}

	if len(scored) == 0 {
		return Result{
			DepartmentID: DefaultDepartmentID,
			Confidence:   0.3,
			Reasoning:    "No keyword matches found - defaulting to Roads & Infrastructure",
		}
	}

	best := scored[0]
	for _, c := range scored[1:] {
		if c.score > best.score {
			best = c
		}
	}

	if best.score > 0.3 {
		confidence := best.score
		if confidence > 0.95 {
			confidence = 0.95
		}
		var alternatives []string
		for _, c := range scored {
			if c.rule.DepartmentID != best.rule.DepartmentID {
				alternatives = append(alternatives, c.rule.DepartmentID)
			}
		}
		return Result{
			DepartmentID:           best.rule.DepartmentID,
			Confidence:             confidence,
			Reasoning:              "AI text analysis matched keywords: " + strings.Join(best.matched, ", "),
			AlternativeDepartments: alternatives,
		}
	}

	return Result{
		DepartmentID: DefaultDepartmentID,
		Confidence:   0.3,
		Reasoning:    "Low confidence text analysis - defaulting to Roads & Infrastructure",
	}
}

// analyzeLocation scans the address for locale patterns. First matching
// pattern group wins.
func analyzeLocation(address string) Result {
	normalized := strings.ToLower(address)
	for _, lp := range locationPatterns {
		for _, pattern := range lp.patterns {
			if pattern != "" && strings.Contains(normalized, pattern) {
				return Result{
					DepartmentID: lp.departmentID,
					Confidence:   lp.confidence,
					Reasoning:    fmt.Sprintf("Location-based routing: %q suggests %s", address, DepartmentName(lp.departmentID)),
				}
			}
		}
	}
	return Result{
		DepartmentID: DefaultDepartmentID,
		Confidence:   0.2,
		Reasoning:    "No specific location patterns found",
	}
}

// defaultAssignment never fails: every priority maps to a department, and
// unknown priorities take the system-wide default.
func defaultAssignment(priority string) Result {
	departmentID, ok := priorityDefaults[priority]
	if !ok {
		departmentID = DefaultDepartmentID
	}
	seen := map[string]bool{departmentID: true}
	var alternatives []string
	for _, p := range priorityOrder {
		id := priorityDefaults[p]
		if !seen[id] {
			seen[id] = true
			alternatives = append(alternatives, id)
		}
	}
	return Result{
		DepartmentID:           departmentID,
		Confidence:             0.5,
		Reasoning:              fmt.Sprintf("Default assignment based on priority: %q", priority),
		AlternativeDepartments: alternatives,
	}
}

// LoadBalanced picks the candidate with the lowest current workload. Unknown
// ids count as zero; ties keep the earliest candidate. Callers layer this on
// top of AutoAssign when they want to spread work — the router itself only
// proposes.
func LoadBalanced(candidates []string, workloads map[string]int) string {
	if len(candidates) == 0 {
		return ""
	}
	lightest := candidates[0]
	for _, id := range candidates[1:] {
		if workloads[id] < workloads[lightest] {
			lightest = id
		}
	}
	return lightest
}

// ValidateRules checks configuration integrity once at startup: every rule,
// location pattern and priority default must reference a registered
// department, and rule confidences must sit in (0, 1].
func ValidateRules() error {
	for i, rule := range Rules {
		if _, ok := departmentNames[rule.DepartmentID]; !ok {
			return fmt.Errorf("routing rule %d references unknown department %q", i, rule.DepartmentID)
		}
		if rule.Confidence <= 0 || rule.Confidence > 1 {
			return fmt.Errorf("routing rule %d confidence %.2f outside (0, 1]", i, rule.Confidence)
		}
		if len(rule.CategoryPatterns) == 0 {
			return fmt.Errorf("routing rule %d has no category patterns", i)
		}
	}
	for i, lp := range locationPatterns {
		if _, ok := departmentNames[lp.departmentID]; !ok {
			return fmt.Errorf("location pattern %d references unknown department %q", i, lp.departmentID)
		}
	}
	for priority, id := range priorityDefaults {
		if _, ok := departmentNames[id]; !ok {
			return fmt.Errorf("priority default %q references unknown department %q", priority, id)
		}
	}
	return nil
}

// Stats summarizes the static rule table for the admin dashboard.
type Stats struct {
	TotalRules       int     `json:"total_rules"`
	DepartmentsCount int     `json:"departments_count"`
	AvgConfidence    float64 `json:"avg_confidence"`
}

func RoutingStats() Stats {
	departments := make(map[string]bool)
	sum := 0.0
	for _, rule := range Rules {
		departments[rule.DepartmentID] = true
		sum += rule.Confidence
	}
	return Stats{
		TotalRules:       len(Rules),
		DepartmentsCount: len(departments),
		AvgConfidence:    math.Round(sum/float64(len(Rules))*100) / 100,
	}
}
