package risk

import (
	"path/filepath"
	"strings"
)

// selfPath is the location of this file inside a checkout of logicscan itself.
// Its keyword table would otherwise dominate any self-scan.
const selfPath = "internal/risk/scorer.go"

const (
	pathKeywordWeight    = 8
	contentKeywordWeight = 2
	layerWeight          = 10
	largeSizeWeight      = 5
	mediumSizeWeight     = 2

	largeSizeBytes  = 50000
	mediumSizeBytes = 10000
)

var highRiskKeywords = []string{
	// authN/Z
	"auth", "permission", "role", "jwt", "token", "session", "login", "logout",
	// payment
	"payment", "billing", "stripe", "credit", "card", "transaction",
	// admin
	"admin", "sudo", "impersonate", "access", "control",
	// secrets
	"secret", "apikey", "api_key", "password",
	// PII
	"pii", "ssn", "personal", "user",
	// mutating verbs
	"delete", "remove", "destroy", "update", "modify",
}

var layerSegments = []string{"/api/", "/routes/", "/controllers/", "/services/"}

// Score maps a file path, its size and a bounded content prefix to a
// non-negative risk score. It is a pure function of its inputs.
func Score(path string, size int64, prefix string) int {
	slashed := filepath.ToSlash(path)
	if slashed == selfPath || strings.HasSuffix(slashed, "/"+selfPath) {
		return 0
	}

	pathLower := "/" + strings.ToLower(strings.TrimPrefix(slashed, "/"))
	contentLower := strings.ToLower(prefix)

	score := 0
	for _, k := range highRiskKeywords {
		if strings.Contains(pathLower, k) {
			score += pathKeywordWeight
		}
		if strings.Contains(contentLower, k) {
			score += contentKeywordWeight
		}
	}

	for _, segment := range layerSegments {
		if strings.Contains(pathLower, segment) {
			score += layerWeight
			break
		}
	}

	switch {
	case size > largeSizeBytes:
		score += largeSizeWeight
	case size > mediumSizeBytes:
		score += mediumSizeWeight
	}

	return score
}
