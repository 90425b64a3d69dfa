package constants

// This is set during compilation.
var Version = "latest"

const AppName = "denials"

// Upload limits, in bytes.
const (
	MiB                 = 1 << 20
	MaxUploadSize       = 100 * MiB
	LargeUploadAdvisory = 50 * MiB
)

const UploadExtension = ".zip"
