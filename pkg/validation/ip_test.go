// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for public IP validation.

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePublicIP_AcceptsRoutableAddresses(t *testing.T) {
	for _, ip := range []string{
		"8.8.8.8",
		"1.1.1.1",
		"185.199.108.153",
		"2606:4700:4700::1111",
	} {
		assert.NoError(t, ValidatePublicIP(ip), "expected %s to be valid", ip)
	}
}

func TestValidatePublicIP_RejectsNonRoutableAddresses(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"malformed":          "not-an-ip",
		"trailing junk":      "8.8.8.8x",
		"private 10/8":       "10.0.0.1",
		"private 192.168/16": "192.168.1.50",
		"private 172.16/12":  "172.16.5.4",
		"loopback v4":        "127.0.0.1",
		"loopback v6":        "::1",
		"unspecified":        "0.0.0.0",
		"multicast":          "224.0.0.1",
		"link-local":         "169.254.10.1",
		"test-net-1":         "192.0.2.55",
		"benchmarking":       "198.18.0.9",
		"class E":            "240.1.2.3",
		"v6 documentation":   "2001:db8::1",
		"v6 private":         "fc00::1",
	}
	for name, ip := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidatePublicIP(ip))
		})
	}
}

func TestSanitizeIP_TrimsAndCanonicalizes(t *testing.T) {
	got, err := SanitizeIP("  8.8.8.8 ")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", got)

	got, err = SanitizeIP("2606:4700:4700:0000::1111")
	require.NoError(t, err)
	assert.Equal(t, "2606:4700:4700::1111", got)
}

func TestSanitizeIP_RejectsInvalid(t *testing.T) {
	_, err := SanitizeIP(" 10.0.0.1 ")
	assert.Error(t, err)
}
