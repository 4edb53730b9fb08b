package visibility

// Decision is the outcome of a single rule.
type Decision int

const (
	// Skip abstains and lets the next rule decide.
	Skip Decision = iota
	// Allow terminates evaluation with an admit decision.
	Allow
	// Deny terminates evaluation with a deny decision.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "skip"
	}
}

// Rule decides, or abstains from deciding, whether a viewer may see an item.
// Rules must be pure: no I/O and no mutation of their inputs.
type Rule interface {
	Eval(item Item, viewer Viewer) Decision
}

// RuleFunc is an adapter to allow the use of ordinary functions as rules.
type RuleFunc func(Item, Viewer) Decision

// Eval returns f(item, viewer).
func (f RuleFunc) Eval(item Item, viewer Viewer) Decision {
	return f(item, viewer)
}

// Policy is an ordered list of rules. The first rule returning Allow or Deny
// wins; if every rule skips, the policy denies.
type Policy []Rule

// Allows evaluates the policy.
func (p Policy) Allows(item Item, viewer Viewer) bool {
	return p.Decide(item, viewer) == Allow
}

// Decide evaluates the policy and returns the terminal decision, which is
// always Allow or Deny.
func (p Policy) Decide(item Item, viewer Viewer) Decision {
	for _, rule := range p {
		switch decision := rule.Eval(item, viewer); decision {
		case Allow, Deny:
			return decision
		}
	}
	return Deny
}
