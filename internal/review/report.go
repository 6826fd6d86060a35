package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
)

const toolName = "refract"

// BuildReport assembles the final report from a finished review: sorts the
// findings, aggregates stats, applies the scoring policy, and stamps run
// identity. Backend, repo, input, and timing metadata are the caller's to
// fill in afterwards.
func BuildReport(version string, findings []Finding, policy ScorePolicy) *Report {
	if policy == nil {
		policy = DefaultPolicy()
	}
	SortFindings(findings)
	stats := Aggregate(findings)
	r := &Report{
		Tool:     toolName,
		Version:  version,
		RunID:    uuid.NewString(),
		Stats:    stats,
		Score:    policy.Score(stats),
		Findings: findings,
	}
	r.Hash = r.ComputeHash()
	return r
}

// ComputeHash returns the SHA-256 of the canonical findings JSON. Consumers
// can recompute it to verify a stored report still matches its findings.
func (r *Report) ComputeHash() string {
	data, err := json.Marshal(r.Findings)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SortFindings orders findings by severity rank descending, then file,
// then line hint, for stable human-facing output.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		ri, rj := SeverityRank(findings[i].Severity), SeverityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].LineHint < findings[j].LineHint
	})
}
