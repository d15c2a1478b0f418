package props

import "regexp"

// secretKeys matches property keys whose values must not be displayed.
// Compiled once at startup and never mutated.
var secretKeys = regexp.MustCompile(`(?i).*(auth|cred|jaas|key|pass|saml|sasl|secur|ssl|token|user).*`)

const maskedValue = "******"

// MaskSecrets returns a copy of the properties with sensitive values
// replaced by asterisks.
func MaskSecrets(properties map[string]string) map[string]string {
	masked := make(map[string]string, len(properties))

	for key, value := range properties {
		if secretKeys.MatchString(key) {
			masked[key] = maskedValue
		} else {
			masked[key] = value
		}
	}

	return masked
}
