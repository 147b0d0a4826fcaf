package domain

// RiskRule is an operator-defined fraud check evaluated by the CEL rule
// engine after the built-in checks. A matching rule adds Score to the risk
// total (before clamping) and raises Flag.
type RiskRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is a CEL expression over the attempt context
	// (user_id, hourly_attempts, daily_attempts, device, verification)
	// returning a bool.
	Expression string `json:"expression"`

	// Score added when the expression matches. Clamped with the rest of
	// the assessment; individual rules should stay within 0-100.
	Score int `json:"score"`

	// Flag raised when the expression matches.
	Flag string `json:"flag"`

	Enabled bool `json:"enabled"`
}

// RiskRuleResult is the outcome of evaluating one custom risk rule.
type RiskRuleResult struct {
	RuleID  string `json:"ruleId"`
	Matched bool   `json:"matched"`
	Score   int    `json:"score"`
	Flag    string `json:"flag,omitempty"`
	Err     string `json:"error,omitempty"`
}
