// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the source normalizer.

package normalize

import (
	"testing"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSources_AllSourcesHealthy(t *testing.T) {
	set := sources.SourceSet{
		Abuse: map[string]any{"abuseConfidenceScore": 42, "totalReports": 7},
		IPQS:  map[string]any{"proxy": true, "fraud_score": 88},
		Geo:   map[string]any{"hostname": "dns.google", "isp": "Google LLC", "country": "United States"},
	}

	record := MergeSources("8.8.8.8", set)

	assert.Equal(t, "8.8.8.8", record["ip"])
	assert.Equal(t, "dns.google", record["hostname"])
	assert.Equal(t, "Google LLC", record["isp"])
	assert.Equal(t, "United States", record["country"])
	assert.Equal(t, 42, record["abuse_score"])
	assert.Equal(t, 7, record["recent_reports"])
	assert.Equal(t, true, record["vpn_proxy"])
	assert.Equal(t, 88, record["fraud_score"])

	raw, ok := record["raw_sources"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, set.Abuse, raw["abuseipdb"])
	assert.Equal(t, set.IPQS, raw["ipqualityscore"])
	assert.Equal(t, set.Geo, raw["ipapi"])
}

func TestMergeSources_FailedSourceYieldsNilFields(t *testing.T) {
	set := sources.SourceSet{
		Abuse: map[string]any{"error": "rate limited", "service": "abuseipdb"},
		IPQS:  map[string]any{"proxy": false},
		Geo:   nil,
	}

	record := MergeSources("1.2.3.4", set)

	assert.Equal(t, "1.2.3.4", record["ip"])
	assert.Nil(t, record["abuse_score"])
	assert.Nil(t, record["recent_reports"])
	assert.Nil(t, record["hostname"])
	assert.Equal(t, false, record["vpn_proxy"])

	// Error markers ride along untouched for audit.
	raw := record["raw_sources"].(map[string]any)
	assert.Equal(t, set.Abuse, raw["abuseipdb"])
}

func TestMergeSources_AlwaysCarriesIPAndRawSources(t *testing.T) {
	record := MergeSources("203.0.113.9", sources.SourceSet{})

	assert.Equal(t, "203.0.113.9", record["ip"])
	assert.Contains(t, record, "raw_sources")
}

func TestMergeSources_Deterministic(t *testing.T) {
	set := sources.SourceSet{
		Abuse: map[string]any{"abuseConfidenceScore": 3},
		IPQS:  map[string]any{"fraud_score": 12},
		Geo:   map[string]any{"country": "DE"},
	}
	assert.Equal(t, MergeSources("9.9.9.9", set), MergeSources("9.9.9.9", set))
}

func TestMinimalRecord_Shape(t *testing.T) {
	marker := map[string]any{"error": "down"}
	set := sources.SourceSet{Abuse: marker, IPQS: marker, Geo: marker}

	record := MinimalRecord("8.8.8.8", set, "External API failure: boom")

	assert.Equal(t, "8.8.8.8", record["ip"])
	assert.Equal(t, "External API failure: boom", record["warning"])
	raw := record["raw_sources"].(map[string]any)
	assert.Len(t, raw, 3)
}
