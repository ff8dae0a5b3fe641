package update

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// InstallMethod indicates how the application was installed.
type InstallMethod int

const (
	// InstallUnknown indicates the installation method could not be determined.
	InstallUnknown InstallMethod = iota
	// InstallHomebrew indicates installation via Homebrew.
	InstallHomebrew
	// InstallDirect indicates a direct binary download.
	InstallDirect
)

// String returns the string representation of an InstallMethod.
func (m InstallMethod) String() string {
	switch m {
	case InstallHomebrew:
		return "homebrew"
	case InstallDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// SelfUpdatable reports whether the app may replace itself. Package-manager
// installs must be upgraded through the package manager.
func (m InstallMethod) SelfUpdatable() bool {
	return m == InstallDirect
}

// DetectInstallMethod determines how the running executable was installed.
// formula is the Homebrew formula name to probe.
func DetectInstallMethod(formula string) InstallMethod {
	execPath, err := os.Executable()
	if err != nil {
		return InstallUnknown
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return InstallUnknown
	}
	return classifyInstallPath(execPath, func() bool { return brewListed(formula) })
}

func classifyInstallPath(execPath string, brewCheck func() bool) InstallMethod {
	if strings.Contains(execPath, "Cellar") || strings.Contains(execPath, "homebrew") {
		return InstallHomebrew
	}
	if brewCheck != nil && brewCheck() {
		return InstallHomebrew
	}
	return InstallDirect
}

func brewListed(formula string) bool {
	if strings.TrimSpace(formula) == "" {
		return false
	}
	if _, err := exec.LookPath("brew"); err != nil {
		return false
	}
	//nolint:gosec // G204: formula comes from configuration, not user input at runtime
	return exec.Command("brew", "list", formula).Run() == nil
}
