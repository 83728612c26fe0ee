package shapelang

// Version and BuildDate identify the build; release builds override them via
// -ldflags "-X github.com/shape-lang/shapelang.Version=...".
var (
	Version   = "0.3.0-dev"
	BuildDate = "unknown"
)
