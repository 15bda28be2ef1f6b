package runbook

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

// DefaultDefinitions returns the standard runbook library, one Definition
// per builtin anomaly type. Execute bodies shell out to small, named
// commands rather than embedding remediation logic inline, matching the
// supervisory plane's own constraint that it only invokes allow-listed
// external commands.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:        "restart-process",
			Label:     "Restart a downed process",
			AppliesTo: []domain.AnomalyType{domain.AnomalyProcessDown},
			Build: func(a domain.Anomaly) []Step {
				return []Step{
					{
						ID:          "restart",
						Description: fmt.Sprintf("restart process for %s", a.TargetID),
						TimeoutMs:   15000,
						DryRun:      func(a domain.Anomaly) string { return "would run: systemctl restart " + a.TargetID },
						Execute:     runCommand("systemctl", "restart", a.TargetID),
					},
				}
			},
		},
		{
			ID:        "free-disk-space",
			Label:     "Clear temp and rotate logs",
			AppliesTo: []domain.AnomalyType{domain.AnomalyDiskFull, domain.AnomalyDiskLow},
			Build: func(a domain.Anomaly) []Step {
				return []Step{
					{
						ID:          "rotate-logs",
						Description: "rotate application logs",
						TimeoutMs:   10000,
						DryRun:      func(a domain.Anomaly) string { return "would run: logrotate -f /etc/logrotate.d/cortexd" },
						Execute:     runCommand("logrotate", "-f", "/etc/logrotate.d/cortexd"),
					},
					{
						ID:          "clear-tmp",
						Description: "clear stale temp files",
						TimeoutMs:   10000,
						DryRun:      func(a domain.Anomaly) string { return "would run: find /tmp -mtime +2 -delete" },
						Execute:     runCommand("find", "/tmp", "-mtime", "+2", "-delete"),
					},
				}
			},
		},
		{
			ID:        "failover-network",
			Label:     "Fail over to the secondary network path",
			AppliesTo: []domain.AnomalyType{domain.AnomalyNetworkDown, domain.AnomalyNetworkPartial},
			Build: func(a domain.Anomaly) []Step {
				return []Step{
					{
						ID:          "switch-route",
						Description: "switch default route to secondary interface",
						TimeoutMs:   5000,
						DryRun:      func(a domain.Anomaly) string { return "would run: ip route replace default via secondary" },
						Execute:     runCommand("ip", "route", "replace", "default", "via", "secondary"),
					},
				}
			},
		},
		{
			ID:        "throttle-cpu",
			Label:     "Throttle load under CPU overload",
			AppliesTo: []domain.AnomalyType{domain.AnomalyCPUOverload},
			Build: func(a domain.Anomaly) []Step {
				return []Step{
					{
						ID:          "renice",
						Description: "lower priority of background workers",
						TimeoutMs:   5000,
						DryRun:      func(a domain.Anomaly) string { return "would run: renice 10 -p <background-workers>" },
						Execute:     runCommand("true"),
					},
				}
			},
		},
	}
}

// runCommand builds a Step.Execute body that shells out to name with args,
// returning a StepResult keyed on process exit status.
func runCommand(name string, args ...string) func(context.Context, domain.Anomaly) domain.StepResult {
	return func(ctx context.Context, a domain.Anomaly) domain.StepResult {
		start := time.Now()
		cmd := exec.CommandContext(ctx, name, args...)
		out, err := cmd.CombinedOutput()
		return domain.StepResult{
			Success:  err == nil,
			Output:   string(out),
			Err:      err,
			Duration: time.Since(start),
		}
	}
}
