package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders DecisionResult as Markdown string.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	// Decision header
	sb.WriteString("# Model Publication Gate\n\n")
	sb.WriteString(fmt.Sprintf("Model: %s\n\n", result.ModelID))
	sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", result.Decision))

	// Criteria table
	sb.WriteString("## Publication Criteria\n\n")
	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	passed := 0
	for i, c := range result.Criteria {
		passStr := "PASS"
		if c.Pass {
			passed++
		} else {
			passStr = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, passStr))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Criteria: %d/%d passed\n\n", passed, len(result.Criteria)))

	// Hold triggers table
	sb.WriteString("## Hold Triggers\n\n")
	sb.WriteString("| # | Trigger | Condition | Actual | Status |\n")
	sb.WriteString("|---|---------|-----------|--------|--------|\n")
	triggered := 0
	for i, c := range result.HoldTriggers {
		statusStr := "NOT TRIGGERED"
		if !c.Pass { // Pass=false means triggered
			statusStr = "TRIGGERED"
			triggered++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, statusStr))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Hold Triggers: %d/%d triggered\n\n", triggered, len(result.HoldTriggers)))

	// Summary
	sb.WriteString("## Summary\n\n")
	if result.Decision == DecisionPublish {
		sb.WriteString("All criteria passed and no hold triggers fired.\n")
	} else {
		sb.WriteString("Decision is HOLD due to:\n")
		for _, c := range result.Criteria {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- criterion failed: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
		for _, c := range result.HoldTriggers {
			if !c.Pass {
				sb.WriteString(fmt.Sprintf("- hold trigger fired: %s (actual: %s)\n", c.Name, c.Actual))
			}
		}
	}

	return sb.String()
}

// RenderInsufficientData renders the gate report when sufficiency checks failed.
func RenderInsufficientData(generatedAt string, failed []CriterionResult, integrityErrors []string) string {
	var sb strings.Builder
	sb.WriteString("# Model Publication Gate\n\n")
	sb.WriteString("Generated at: " + generatedAt + "\n\n")
	sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", DecisionInsufficientData))
	sb.WriteString("Data sufficiency checks failed. No model was fitted.\n\n")

	sb.WriteString("### Sufficiency Checks\n\n")
	sb.WriteString("| Check | Threshold | Actual | Status |\n")
	sb.WriteString("|-------|-----------|--------|--------|\n")
	for _, c := range failed {
		status := "PASS"
		if !c.Pass {
			status = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
	}
	sb.WriteString("\n")

	if len(integrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, e := range integrityErrors {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Required Actions\n\n")
	sb.WriteString("1. Ingest more customer history until all sufficiency checks pass\n")
	sb.WriteString("2. Fix corpus files with dropped records\n")
	sb.WriteString("3. Re-run the pipeline\n")
	return sb.String()
}
