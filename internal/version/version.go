package version

// Build information set by ldflags
var (
	Version = "dev"     // -X smokehouse/internal/version.Version={{.Version}}
	Commit  = "unknown" // -X smokehouse/internal/version.Commit={{.Commit}}
	Date    = "unknown" // -X smokehouse/internal/version.Date={{.Date}}
)
