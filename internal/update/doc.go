// Package update answers "is there a newer release?" for the running binary.
//
// It queries the GitHub Releases API for the latest release, compares
// semantic versions, and reports how the binary was installed so callers
// can decide whether an in-app update is permitted. It does not download
// or install anything.
//
// Example usage:
//
//	checker := update.NewChecker("owner", "repo")
//	info, err := checker.Check(ctx, currentVersion)
//	if err != nil {
//	    // handle error
//	}
//	if info != nil && info.UpdateAvailable {
//	    // offer the update
//	}
package update
