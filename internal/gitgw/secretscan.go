package gitgw

import (
	"regexp"
	"strings"

	"github.com/mikehostetler/wreckit/internal/werr"
)

// SecretHit is one line in the added-diff that matched a secret
// pattern.
type SecretHit struct {
	Pattern string
	Line    int
	Preview string
}

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

// secretPatterns is a fixed list of high-precision regexes. Chosen to
// minimize false positives: each targets a specific, recognizable token
// shape rather than generic high-entropy strings.
var secretPatterns = []secretPattern{
	{"private-key", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY-----`)},
	{"aws-access-key-id", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"github-pat", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack-token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"password-assignment", regexp.MustCompile(`(?i)\b(password|passwd|api_key|apikey|secret)\s*[:=]\s*["'][^"'\s]{8,}["']`)},
	{"bearer-token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{20,}\b`)},
}

// ScanAddedLinesForSecrets runs the fixed secret-pattern set over the
// added lines of a diff against ref, reporting each hit with a line
// preview so a reviewer can triage without re-running the scan.
func (gw *Gateway) ScanAddedLinesForSecrets(ref string) ([]SecretHit, error) {
	unlock := gw.eng.LockGit()
	diff, err := gw.git.DiffAddedLines(ref)
	unlock()
	if err != nil {
		return nil, werr.Wrap(werr.Git, "diff for secret scan", err)
	}

	var hits []SecretHit
	lineNo := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if !strings.HasPrefix(line, "+") {
			continue
		}
		lineNo++
		content := strings.TrimPrefix(line, "+")
		for _, p := range secretPatterns {
			if p.re.MatchString(content) {
				preview := content
				if len(preview) > 120 {
					preview = preview[:120] + "..."
				}
				hits = append(hits, SecretHit{Pattern: p.name, Line: lineNo, Preview: preview})
			}
		}
	}
	return hits, nil
}
