package pipeline

import "strings"

type DetectResult struct {
	IsReport bool
	Score    float64
	Reason   string
}

var reportKeywords = []string{"production report", "inventory", "monthly report", "shipment", "waste", "capacity", "stock"}

// DetectReportMail scores how likely a message is a monthly production
// report rather than correspondence. Rule-based on purpose: mailboxes that
// feed the dashboard also receive confirmations and replies.
func DetectReportMail(subject, text string, attachmentNames []string, tableCount int) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range reportKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".xls") || strings.HasSuffix(ln, ".csv") || strings.HasSuffix(ln, ".pdf") {
			score += 0.3
			break
		}
	}

	if tableCount > 0 {
		score += 0.35
	}
	if score > 1 {
		score = 1
	}

	isReport := score >= 0.45
	reason := "rules_negative"
	if isReport {
		reason = "rules_positive"
	}

	return DetectResult{IsReport: isReport, Score: score, Reason: reason}
}
