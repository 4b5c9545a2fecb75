// Package analyzer implements the Self-Analyzer (C10): a stateless rule
// engine over a metrics summary, producing findings and a rendered report.
package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/skillcore/skillcore/internal/metrics"
)

// Severity is the closed set a Finding may carry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one rule-engine observation.
type Finding struct {
	Category        string            `json:"category"`
	Severity        Severity          `json:"severity"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Recommendations []string          `json:"recommendations"`
	Data            map[string]string `json:"data,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// ReportSummary tallies a report's findings.
type ReportSummary struct {
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"by_severity"`
	ByCategory  map[string]int `json:"by_category"`
}

// Report is GenerateReport's return value, also the JSON rendering shape.
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	Summary   ReportSummary `json:"summary"`
	Findings  []Finding     `json:"findings"`
}

// ErrorLogGroup is an externally supplied tally of recurring error
// messages, since the summary type itself carries no error log.
type ErrorLogGroup struct {
	Signature string
	Count     int
}

// Analyze runs the closed rule set over a metrics summary plus an optional
// error-log tally and token-usage gauge, per §4.10.
func Analyze(summary metrics.Summary, errorGroups []ErrorLogGroup, avgTokensPerRequest float64) []Finding {
	now := time.Now()
	var findings []Finding

	for name, timer := range summary.Timers {
		if !strings.HasPrefix(name, "task.") {
			continue
		}
		if timer.Mean > 30.0 {
			findings = append(findings, Finding{
				Category:        "performance",
				Severity:        SeverityWarning,
				Title:           "slow task",
				Description:     fmt.Sprintf("%s has a mean duration of %.2fs", name, timer.Mean),
				Recommendations: []string{"profile the operation", "consider an alternative strategy"},
				Data:            map[string]string{"timer": name, "mean_seconds": fmt.Sprintf("%.2f", timer.Mean)},
				Timestamp:       now,
			})
		}
		if timer.Count > 10 && timer.Mean > 0 && (timer.Max-timer.Min)/timer.Mean > 2.0 {
			findings = append(findings, Finding{
				Category:        "performance",
				Severity:        SeverityInfo,
				Title:           "inconsistent",
				Description:     fmt.Sprintf("%s duration varies widely (min=%.2fs max=%.2fs mean=%.2fs)", name, timer.Min, timer.Max, timer.Mean),
				Recommendations: []string{"investigate tail latency"},
				Data:            map[string]string{"timer": name},
				Timestamp:       now,
			})
		}
	}

	for _, group := range errorGroups {
		switch {
		case group.Count > 10:
			findings = append(findings, Finding{
				Category:        "reliability",
				Severity:        SeverityError,
				Title:           "recurring error",
				Description:     fmt.Sprintf("%q has recurred %d times", group.Signature, group.Count),
				Recommendations: []string{"investigate root cause", "consider a circuit breaker"},
				Data:            map[string]string{"signature": group.Signature},
				Timestamp:       now,
			})
		case group.Count > 3:
			findings = append(findings, Finding{
				Category:        "reliability",
				Severity:        SeverityWarning,
				Title:           "recurring error",
				Description:     fmt.Sprintf("%q has recurred %d times", group.Signature, group.Count),
				Recommendations: []string{"investigate root cause"},
				Data:            map[string]string{"signature": group.Signature},
				Timestamp:       now,
			})
		}
	}

	if cpu, ok := summary.Gauges["cpu_percent"]; ok {
		findings = append(findings, resourceFinding("resources", "cpu_percent", cpu, 80, 95, now)...)
	}
	if mem, ok := summary.Gauges["memory_percent"]; ok {
		findings = append(findings, resourceFinding("resources", "memory_percent", mem, 85, 95, now)...)
	}

	if avgTokensPerRequest > 4000 {
		findings = append(findings, Finding{
			Category:        "cost",
			Severity:        SeverityWarning,
			Title:           "high token usage",
			Description:     fmt.Sprintf("average %.0f tokens per request", avgTokensPerRequest),
			Recommendations: []string{"trim prompts", "consider a smaller model strategy"},
			Timestamp:       now,
		})
	}

	return findings
}

func resourceFinding(category, name string, value, warnThreshold, errThreshold float64, now time.Time) []Finding {
	var severity Severity
	switch {
	case value > errThreshold:
		severity = SeverityError
	case value > warnThreshold:
		severity = SeverityWarning
	default:
		return nil
	}
	return []Finding{{
		Category:        category,
		Severity:        severity,
		Title:           fmt.Sprintf("%s elevated", name),
		Description:     fmt.Sprintf("%s at %.1f%%", name, value),
		Recommendations: []string{"scale resources", "shed load"},
		Data:            map[string]string{"value": fmt.Sprintf("%.1f", value)},
		Timestamp:       now,
	}}
}

// GenerateReport tallies findings into a Report and writes both a JSON and
// a plaintext rendering alongside path (path's extension is replaced).
func GenerateReport(findings []Finding, path string) (Report, error) {
	bySeverity := make(map[string]int)
	byCategory := make(map[string]int)
	for _, f := range findings {
		bySeverity[string(f.Severity)]++
		byCategory[f.Category]++
	}

	report := Report{
		Timestamp: time.Now(),
		Summary: ReportSummary{
			Total:      len(findings),
			BySeverity: bySeverity,
			ByCategory: byCategory,
		},
		Findings: findings,
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	jsonPath := base + ".json"
	txtPath := base + ".txt"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Report{}, fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return Report{}, fmt.Errorf("write json report: %w", err)
	}
	if err := os.WriteFile(txtPath, []byte(renderText(report)), 0o644); err != nil {
		return Report{}, fmt.Errorf("write text report: %w", err)
	}

	return report, nil
}

func renderText(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "report generated %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "total findings: %d\n\n", r.Summary.Total)

	categories := make([]string, 0, len(r.Summary.ByCategory))
	for c := range r.Summary.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "%s: %d\n", c, r.Summary.ByCategory[c])
	}
	b.WriteString("\n")

	for _, f := range r.Findings {
		fmt.Fprintf(&b, "[%s] %s: %s\n  %s\n", strings.ToUpper(string(f.Severity)), f.Category, f.Title, f.Description)
	}
	return b.String()
}
