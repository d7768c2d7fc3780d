package oauthcore

import "strings"

// splitScopes parses a space-delimited scope string into its permission
// names. An empty string means unscoped.
func splitScopes(scope string) []string {
	return strings.Fields(scope)
}

// missingScopes returns the required scopes not covered by the token's scope
// set, in the order they were required.
func missingScopes(tokenScope string, required []string) []string {
	if len(required) == 0 {
		return nil
	}

	held := make(map[string]struct{})
	for _, s := range splitScopes(tokenScope) {
		held[s] = struct{}{}
	}

	var missing []string
	for _, s := range required {
		if _, ok := held[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
