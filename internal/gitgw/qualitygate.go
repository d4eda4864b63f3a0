package gitgw

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/mikehostetler/wreckit/internal/werr"
)

// QualityGateResult records the outcome of one configured gate command.
type QualityGateResult struct {
	Command string
	Passed  bool
	Output  string
}

// RunQualityGates runs every configured shell command in order, stopping
// at the first non-zero exit (fail fast — later gates are not run once
// one has failed, since they usually depend on the same build step).
func (gw *Gateway) RunQualityGates(ctx context.Context) ([]QualityGateResult, error) {
	var results []QualityGateResult
	for _, command := range gw.qualityGates {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = gw.git.WorkDir()
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()

		result := QualityGateResult{
			Command: command,
			Passed:  err == nil,
			Output:  out.String(),
		}
		results = append(results, result)
		if err != nil {
			return results, werr.Wrap(werr.QualityGateFailed, fmt.Sprintf("quality gate failed: %s", command), err)
		}
	}
	return results, nil
}
