package guardrail

// DefaultRules returns the built-in screening rules: profanity, US social security
// numbers, payment card numbers and private key material.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "profanity",
			Expression: `text.matches(r'(?i)\b(fuck\w*|shit\w*|cunt\w*|motherfuck\w*|bitch\w*|asshole\w*)\b')`,
			Reason:     "contract text contains profanity",
		},
		{
			Name:       "us_ssn",
			Expression: `text.matches(r'\b\d{3}-\d{2}-\d{4}\b')`,
			Reason:     "contract text contains what looks like a US social security number; redact it and retry",
		},
		{
			Name:       "payment_card",
			Expression: `text.matches(r'\b(?:4\d{3}|5[1-5]\d{2}|3[47]\d{2}|6011)(?:[ -]?\d{4}){2}[ -]?\d{3,4}\b')`,
			Reason:     "contract text contains what looks like a payment card number; redact it and retry",
		},
		{
			Name:       "private_key",
			Expression: `text.contains('-----BEGIN') && text.contains('PRIVATE KEY-----')`,
			Reason:     "contract text contains private key material",
		},
	}
}
