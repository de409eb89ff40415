package match

// Trigger kinds whose event payload carries a file diff.
var diffTriggers = map[string]bool{
	"pull_request":        true,
	"pull_request_target": true,
}

// CarriesDiff reports whether events of triggerKind have a changed-file list.
func CarriesDiff(triggerKind string) bool {
	return diffTriggers[triggerKind]
}

// ShouldProceed decides whether monitoring should run for a change-set.
// It always proceeds when no gates are configured or the trigger has no diff;
// otherwise at least one changed path must match a gate.
func ShouldProceed(triggerKind string, changedFiles []string, gates Patterns) bool {
	if gates.Len() == 0 || !CarriesDiff(triggerKind) {
		return true
	}

	for _, path := range changedFiles {
		if gates.Match(path) {
			return true
		}
	}

	return false
}
