package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Version information for the refbind CLI.
// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders Version with each numeric component in its own color.
// Pre-release and build suffixes stay uncolored.
func Colored() string {
	core, suffix := Version, ""
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core, suffix = core[:i], core[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Info is the multi-line text printed by the version command.
// ruleset is the binding ruleset version the engine implements.
func Info(colored bool, ruleset string) string {
	v := Version
	if colored {
		v = Colored()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "refbind %s\n", v)
	fmt.Fprintf(&b, "ruleset %s\n", ruleset)
	if GitCommit != "" {
		fmt.Fprintf(&b, "commit  %s\n", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&b, "built   %s\n", BuildDate)
	}
	return b.String()
}
