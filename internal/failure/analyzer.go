// Package failure implements the Failure Analyzer (C4): a bounded ring of
// failure records plus pattern detection and root-cause inference over it.
package failure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	clerr "github.com/skillcore/skillcore/pkg/errors"
)

// Record is an immutable failure observation (§3's FailureRecord).
type Record struct {
	Timestamp     time.Time
	OperationName string
	ErrorKind     clerr.ErrorKind
	ErrorMessage  string
	ContextDigest string
}

// Pattern is the closed set AnalyzePattern can report.
type Pattern string

const (
	PatternRepeating Pattern = "REPEATING_ERROR"
	PatternUnstable  Pattern = "UNSTABLE_SERVICE"
	PatternCascading Pattern = "CASCADING"
	PatternNone      Pattern = "NONE"
)

// Analysis is the result of a pattern scan.
type Analysis struct {
	Pattern         Pattern
	RootCause       string
	Confidence      float64
	Recommendations []string
}

// EventBus is the collaborator C4 publishes every recorded failure to, so a
// separate process's evolution manager can react without the caller
// blocking. The in-process default is a buffered channel; Redis Streams is
// an injectable alternative (§2.2).
type EventBus interface {
	Publish(ctx context.Context, rec Record) error
}

// Config parameterizes the analyzer's ring and pattern thresholds.
type Config struct {
	Capacity         int
	Retention        time.Duration
	PatternThreshold int
	CascadeWindow    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.PatternThreshold <= 0 {
		c.PatternThreshold = 3
	}
	if c.CascadeWindow <= 0 {
		c.CascadeWindow = 60 * time.Second
	}
	return c
}

// Analyzer accumulates failures in a bounded, insertion-ordered ring (an
// LRU cache keyed by monotonically increasing sequence number; since
// entries are never re-touched via Get, eviction degenerates to FIFO on
// overflow) plus a time-based sweep for 24h retention.
type Analyzer struct {
	mu     sync.Mutex
	ring   *lru.Cache[uint64, Record]
	seq    uint64
	config Config
	bus    EventBus
}

// New creates an analyzer. bus may be nil to disable publication.
func New(config Config, bus EventBus) *Analyzer {
	config = config.withDefaults()
	ring, err := lru.New[uint64, Record](config.Capacity)
	if err != nil {
		// Only possible with a non-positive size, which withDefaults prevents.
		panic(err)
	}
	return &Analyzer{ring: ring, config: config, bus: bus}
}

func digest(operationName, message string) string {
	sum := sha256.Sum256([]byte(operationName + "|" + message))
	return hex.EncodeToString(sum[:8])
}

// RecordFailure classifies err, appends it to the ring, sweeps expired
// entries, and publishes it to the event bus if configured.
func (a *Analyzer) RecordFailure(err error, operationName string) Record {
	rec := Record{
		Timestamp:     time.Now(),
		OperationName: operationName,
		ErrorKind:     clerr.Classify(err),
		ErrorMessage:  errMessage(err),
		ContextDigest: digest(operationName, errMessage(err)),
	}

	a.mu.Lock()
	a.seq++
	a.ring.Add(a.seq, rec)
	a.evictExpiredLocked()
	a.mu.Unlock()

	if a.bus != nil {
		_ = a.bus.Publish(context.Background(), rec)
	}
	return rec
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (a *Analyzer) evictExpiredLocked() {
	cutoff := time.Now().Add(-a.config.Retention)
	for _, key := range a.ring.Keys() {
		rec, ok := a.ring.Peek(key)
		if !ok {
			continue
		}
		if rec.Timestamp.Before(cutoff) {
			a.ring.Remove(key)
		}
	}
}

func (a *Analyzer) snapshot() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := a.ring.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := a.ring.Peek(k); ok {
			records = append(records, rec)
		}
	}
	return records
}

// AnalyzePattern scans recorded failures within window (nil means all
// records currently held) and classifies the dominant pattern (§4.4).
func (a *Analyzer) AnalyzePattern(window *time.Duration) Analysis {
	records := a.snapshot()
	if window != nil {
		cutoff := time.Now().Add(-*window)
		filtered := records[:0:0]
		for _, r := range records {
			if r.Timestamp.After(cutoff) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if len(records) == 0 {
		return Analysis{Pattern: PatternNone, RootCause: "", Confidence: 0}
	}

	// REPEATING_ERROR: (operation, kind) pairs seen >= threshold times.
	pairCounts := make(map[string]int)
	for _, r := range records {
		pairCounts[string(r.OperationName)+"|"+string(r.ErrorKind)]++
	}
	repeating := false
	for _, c := range pairCounts {
		if c >= a.config.PatternThreshold {
			repeating = true
			break
		}
	}

	// UNSTABLE_SERVICE: one operation spans >= 3 distinct error kinds.
	kindsByOp := make(map[string]map[clerr.ErrorKind]bool)
	for _, r := range records {
		if kindsByOp[r.OperationName] == nil {
			kindsByOp[r.OperationName] = make(map[clerr.ErrorKind]bool)
		}
		kindsByOp[r.OperationName][r.ErrorKind] = true
	}
	unstable := false
	for _, kinds := range kindsByOp {
		if len(kinds) >= 3 {
			unstable = true
			break
		}
	}

	// CASCADING: >= 3 distinct operations with distinct-kind failures within
	// the cascade window of the most recent failure.
	latest := records[len(records)-1].Timestamp
	cascadeCutoff := latest.Add(-a.config.CascadeWindow)
	recentOps := make(map[string]clerr.ErrorKind)
	for _, r := range records {
		if r.Timestamp.After(cascadeCutoff) || r.Timestamp.Equal(cascadeCutoff) {
			recentOps[r.OperationName] = r.ErrorKind
		}
	}
	distinctKinds := make(map[clerr.ErrorKind]bool)
	for _, k := range recentOps {
		distinctKinds[k] = true
	}
	cascading := len(recentOps) >= 3 && len(distinctKinds) >= 2

	pattern := PatternNone
	switch {
	case cascading:
		pattern = PatternCascading
	case repeating:
		pattern = PatternRepeating
	case unstable:
		pattern = PatternUnstable
	}

	kindCounts := make(map[clerr.ErrorKind]int)
	for _, r := range records {
		kindCounts[r.ErrorKind]++
	}
	var dominant clerr.ErrorKind
	dominantCount := 0
	for k, c := range kindCounts {
		if c > dominantCount {
			dominant = k
			dominantCount = c
		}
	}
	confidence := float64(dominantCount) / float64(len(records))
	rootCause, recommendations := rootCauseFor(dominant)

	return Analysis{
		Pattern:         pattern,
		RootCause:       rootCause,
		Confidence:      confidence,
		Recommendations: recommendations,
	}
}

// rootCauseFor maps the dominant error kind to the closed root-cause and
// recommendation template set (§4.4). It applies regardless of whether a
// multi-failure pattern was detected, so a single terminal failure still
// carries a remediation recommendation, not just a repeated one.
func rootCauseFor(kind clerr.ErrorKind) (string, []string) {
	switch kind {
	case clerr.KindNetwork, clerr.KindTimeout:
		return "network_connectivity", []string{"check network", "try alternative transport"}
	case clerr.KindRateLimit:
		return "rate_limiting", []string{"back off", "spread load"}
	case clerr.KindAuthentication:
		return "authentication_failure", []string{"verify credentials", "refresh token"}
	case clerr.KindServerError:
		return "upstream_instability", []string{"retry with backoff", "check upstream status page"}
	case clerr.KindResourceExhausted:
		return "resource_exhaustion", []string{"scale resources", "shed load"}
	default:
		return "unclassified", []string{"inspect logs"}
	}
}

// IsRepeatingError reports whether err's kind has appeared at least
// PatternThreshold times for op in the ring.
func (a *Analyzer) IsRepeatingError(err error, op string) bool {
	kind := clerr.Classify(err)
	count := 0
	for _, r := range a.snapshot() {
		if r.OperationName == op && r.ErrorKind == kind {
			count++
		}
	}
	return count >= a.config.PatternThreshold
}
