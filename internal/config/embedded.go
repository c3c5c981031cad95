package config

// Embedded API keys injected at build time via ldflags.
// These serve as defaults and can be overridden by environment
// variables or config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/shelfwise/shelfwise/internal/config.EmbeddedTMDBKey=xxx' \
//                      -X 'github.com/shelfwise/shelfwise/internal/config.EmbeddedIGDBClientID=yyy' \
//                      -X 'github.com/shelfwise/shelfwise/internal/config.EmbeddedIGDBClientSecret=zzz'"
var (
	EmbeddedTMDBKey          string
	EmbeddedIGDBClientID     string
	EmbeddedIGDBClientSecret string
)

// Version is set at build time.
var Version = "dev"
