// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the end-to-end analysis pipeline.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/assess"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/cache"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/datatypes"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/sources"
	"github.com/AleutianAI/AleutianSentry/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]map[string]any
	deletes []string
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]map[string]any{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *fakeStore) Set(_ context.Context, key string, value map[string]any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.sets++
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type countingSource struct {
	mu      sync.Mutex
	name    string
	payload map[string]any
	panics  bool
	calls   int
}

func (c *countingSource) Name() string { return c.name }

func (c *countingSource) Fetch(context.Context, string) map[string]any {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.panics {
		panic("source blew up")
	}
	return c.payload
}

type scriptedLLM struct {
	mu          sync.Mutex
	calls       int
	finalJSON   string // response to the final assessment prompt
	compressErr bool   // fail every compression call
	finalErr    bool   // fail every final assessment call
}

func (f *scriptedLLM) Complete(_ context.Context, model, prompt string, _ llm.GenerationParams) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if strings.Contains(prompt, "senior cybersecurity threat intelligence analyst") {
		if f.finalErr {
			return "", errors.New("provider down")
		}
		return f.finalJSON, nil
	}
	if f.compressErr {
		return "", errors.New("provider down")
	}
	return `{"signals":["indicator"],"summary":"compressed"}`, nil
}

func (f *scriptedLLM) Probe(context.Context, string) error { return nil }

func (f *scriptedLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// =============================================================================
// Harness
// =============================================================================

var testModels = []string{"gpt-4.1-mini", "gpt-4.1"}

type sourceTrio struct {
	abuse *countingSource
	ipqs  *countingSource
	geo   *countingSource
}

type harness struct {
	pipeline *Pipeline
	store    *fakeStore
	llm      *scriptedLLM
	srcs     sourceTrio
}

func (h *harness) sourceCalls() int {
	return h.srcs.abuse.calls + h.srcs.ipqs.calls + h.srcs.geo.calls
}

func newHarness(client *scriptedLLM, srcs sourceTrio) *harness {
	store := newFakeStore()
	agg := sources.NewAggregator(srcs.abuse, srcs.ipqs, srcs.geo)
	p := New(store, agg,
		assess.NewCompressor(client, testModels[0]),
		assess.NewAssessor(client, testModels, 3),
		Config{
			CacheVersion:     "v1",
			CacheModelTag:    "openai",
			CacheTTL:         time.Hour,
			AllowedModels:    testModels,
			RetiredProviders: []string{"gemini"},
		})
	return &harness{pipeline: p, store: store, llm: client, srcs: srcs}
}

func healthySources() sourceTrio {
	return sourceTrio{
		abuse: &countingSource{name: "abuseipdb", payload: map[string]any{"abuseConfidenceScore": 0, "totalReports": 0}},
		ipqs:  &countingSource{name: "ipqualityscore", payload: map[string]any{"proxy": false, "fraud_score": 2}},
		geo:   &countingSource{name: "ipapi", payload: map[string]any{"hostname": "dns.google", "country": "United States", "isp": "Google LLC"}},
	}
}

func failedSources() sourceTrio {
	return sourceTrio{
		abuse: &countingSource{name: "abuseipdb", payload: map[string]any{"error": "timeout", "service": "abuseipdb"}},
		ipqs:  &countingSource{name: "ipqualityscore", payload: map[string]any{"error": "timeout", "service": "ipqualityscore"}},
		geo:   &countingSource{name: "ipapi", payload: map[string]any{"error": "timeout", "service": "ipapi"}},
	}
}

func validEntry() map[string]any {
	return map[string]any{
		"ip":              "8.8.8.8",
		"risk_level":      "Low",
		"risk_analysis":   "clean history",
		"recommendations": []any{"monitor"},
		"confidence":      0.8,
		"model_used":      "gpt-4.1-mini",
	}
}

const cleanVerdictJSON = `{"risk_level":"low","risk_analysis":"clean","recommendations":["monitor"],"confidence":0.8}`

// =============================================================================
// Cache Fast Path
// =============================================================================

func TestAnalyzeIP_ValidCacheEntryShortCircuits(t *testing.T) {
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, healthySources())
	entry := validEntry()
	h.store.data[cache.Key("v1", "openai", "8.8.8.8")] = entry

	result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, entry, result)
	assert.Zero(t, h.sourceCalls(), "cache hit must make no source calls")
	assert.Zero(t, h.llm.callCount(), "cache hit must make no LLM calls")
}

func TestAnalyzeIP_InvalidEntryDeletedAndPipelineRuns(t *testing.T) {
	clauses := map[string]func(map[string]any){
		"missing field":             func(e map[string]any) { delete(e, "confidence") },
		"bad risk level":            func(e map[string]any) { e["risk_level"] = "Catastrophic" },
		"unknown risk level":        func(e map[string]any) { e["risk_level"] = "unknown" },
		"disallowed model":          func(e map[string]any) { e["model_used"] = "gemini-x" },
		"null model":                func(e map[string]any) { e["model_used"] = "null" },
		"retired provider leak":     func(e map[string]any) { e["risk_analysis"] = "Gemini quota exceeded" },
		"confidence above range":    func(e map[string]any) { e["confidence"] = 1.2 },
		"confidence below range":    func(e map[string]any) { e["confidence"] = -0.1 },
		"non-numeric confidence":    func(e map[string]any) { e["confidence"] = "high" },
		"scalar recommendations":    func(e map[string]any) { e["recommendations"] = "monitor" },
		"nil recommendations value": func(e map[string]any) { e["recommendations"] = nil },
	}

	for name, corrupt := range clauses {
		t.Run(name, func(t *testing.T) {
			h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, healthySources())
			key := cache.Key("v1", "openai", "8.8.8.8")
			entry := validEntry()
			corrupt(entry)
			h.store.data[key] = entry

			result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

			assert.Contains(t, h.store.deletes, key, "invalid entry must be deleted")
			assert.Positive(t, h.sourceCalls(), "pipeline must re-run after invalid entry")
			assert.Equal(t, "Low", result["risk_level"])
		})
	}
}

// =============================================================================
// End-to-End Scenarios
// =============================================================================

func TestAnalyzeIP_FullPipelineSuccessIsCached(t *testing.T) {
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, healthySources())

	result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, "Low", result["risk_level"])
	assert.Equal(t, "gpt-4.1-mini", result["model_used"])
	assert.Equal(t, 0.8, result["confidence"])
	assert.Equal(t, "8.8.8.8", result["ip"])
	assert.Contains(t, result, "full_input_to_llm")
	assert.Contains(t, result, "raw_sources")

	cached, ok := h.store.Get(context.Background(), cache.Key("v1", "openai", "8.8.8.8"))
	require.True(t, ok, "complete verdict must be persisted")
	assert.Equal(t, "Low", cached["risk_level"])
}

func TestAnalyzeIP_CachedResultIsServedOnSecondRequest(t *testing.T) {
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, healthySources())

	first := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")
	sourceCallsAfterFirst := h.sourceCalls()
	llmCallsAfterFirst := h.llm.callCount()

	second := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, first["risk_level"], second["risk_level"])
	assert.Equal(t, sourceCallsAfterFirst, h.sourceCalls(), "second request must hit the cache")
	assert.Equal(t, llmCallsAfterFirst, h.llm.callCount())
}

func TestAnalyzeIP_AllSourcesFailedStillAssessed(t *testing.T) {
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, failedSources())

	result := h.pipeline.AnalyzeIP(context.Background(), "198.51.100.7")

	assert.Equal(t, "198.51.100.7", result["ip"])
	raw, ok := result["raw_sources"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"abuseipdb", "ipqualityscore", "ipapi"} {
		marker, ok := raw[name].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, marker, "error", "marker for %s must survive", name)
	}
	assert.Contains(t, result, "warning")
	assert.Positive(t, h.llm.callCount(), "assessor must still run on the minimal record")
	// This path returns before the cache write step.
	assert.Zero(t, h.store.sets)
}

func TestAnalyzeIP_AllSourcesAndLLMFailedReturnsDegradedUncached(t *testing.T) {
	h := newHarness(&scriptedLLM{compressErr: true, finalErr: true}, failedSources())

	result := h.pipeline.AnalyzeIP(context.Background(), "198.51.100.7")

	assert.Equal(t, "unknown", result["risk_level"])
	assert.Equal(t, 0.0, result["confidence"])
	assert.Nil(t, result["model_used"])
	assert.Zero(t, h.store.sets, "degraded verdicts are never cached")
}

func TestAnalyzeIP_RetiredProviderEntryRerunsFully(t *testing.T) {
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, healthySources())
	key := cache.Key("v1", "openai", "8.8.8.8")
	entry := validEntry()
	entry["model_used"] = "gemini-x"
	h.store.data[key] = entry

	result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Contains(t, h.store.deletes, key)
	assert.Equal(t, "gpt-4.1-mini", result["model_used"], "pipeline must re-run with the supported provider")
}

// =============================================================================
// Failure Paths
// =============================================================================

func TestAnalyzeIP_AggregationFailureSkipsAssessor(t *testing.T) {
	srcs := healthySources()
	srcs.abuse.panics = true
	h := newHarness(&scriptedLLM{finalJSON: cleanVerdictJSON}, srcs)

	result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, "unknown", result["risk_level"])
	assert.Equal(t, "8.8.8.8", result["ip"])
	warning, _ := result["warning"].(string)
	assert.Contains(t, warning, "External API failure")
	assert.Zero(t, h.llm.callCount(), "assessor must not run when the fan-out itself fails")
	assert.Zero(t, h.store.sets)
}

type panickingAssessor struct{}

func (panickingAssessor) Assess(context.Context, []map[string]any) datatypes.Verdict {
	panic("assessor bug")
}

type passthroughCompressor struct{}

func (passthroughCompressor) Compress(_ context.Context, dataJSON string) []map[string]any {
	return []map[string]any{{"signals": []any{}, "summary": dataJSON}}
}

func TestAnalyzeIP_AssessorPanicIsCaught(t *testing.T) {
	srcs := healthySources()
	store := newFakeStore()
	p := New(store, sources.NewAggregator(srcs.abuse, srcs.ipqs, srcs.geo), passthroughCompressor{}, panickingAssessor{}, Config{
		CacheVersion:  "v1",
		CacheTTL:      time.Hour,
		AllowedModels: testModels,
	})

	result := p.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, "unknown", result["risk_level"])
	assert.Zero(t, store.sets)
}

func TestAnalyzeIP_LLMFailureOnHealthySourcesNotCached(t *testing.T) {
	h := newHarness(&scriptedLLM{compressErr: true, finalErr: true}, healthySources())

	result := h.pipeline.AnalyzeIP(context.Background(), "8.8.8.8")

	assert.Equal(t, "unknown", result["risk_level"])
	// Normalized fields still present from the healthy sources.
	assert.Equal(t, "dns.google", result["hostname"])
	assert.Contains(t, result, "full_input_to_llm")
	assert.Zero(t, h.store.sets)
}
