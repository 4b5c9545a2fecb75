package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skillcore/skillcore/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SlowTaskWarning(t *testing.T) {
	summary := metrics.Summary{
		Timers: map[string]metrics.TimerSummary{
			"task.fetch": {Count: 5, Min: 20, Max: 40, Mean: 31},
		},
	}
	findings := Analyze(summary, nil, 0)
	require.NotEmpty(t, findings)
	assert.Equal(t, "slow task", findings[0].Title)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
}

func TestAnalyze_RecurringErrorSeverities(t *testing.T) {
	groups := []ErrorLogGroup{
		{Signature: "timeout", Count: 4},
		{Signature: "crash", Count: 11},
	}
	findings := Analyze(metrics.Summary{}, groups, 0)
	require.Len(t, findings, 2)

	var warn, errSev bool
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			warn = true
		}
		if f.Severity == SeverityError {
			errSev = true
		}
	}
	assert.True(t, warn)
	assert.True(t, errSev)
}

func TestAnalyze_ResourceThresholds(t *testing.T) {
	summary := metrics.Summary{
		Gauges: map[string]float64{"cpu_percent": 96, "memory_percent": 50},
	}
	findings := Analyze(summary, nil, 0)
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityError, findings[0].Severity)
}

func TestAnalyze_HighTokenUsage(t *testing.T) {
	findings := Analyze(metrics.Summary{}, nil, 5000)
	require.Len(t, findings, 1)
	assert.Equal(t, "high token usage", findings[0].Title)
}

func TestGenerateReport_WritesJSONAndText(t *testing.T) {
	dir := t.TempDir()
	findings := []Finding{{Category: "resources", Severity: SeverityWarning, Title: "cpu_percent elevated"}}

	report, err := GenerateReport(findings, filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Total)

	_, err = os.Stat(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
}
