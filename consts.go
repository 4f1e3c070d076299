// Package quorum holds the cluster-wide constants shared by every
// subpackage of quorumd: the single-decree Paxos replicated log.
package quorum

const (
	// ServerVersion is reported by --version and in the startup log line.
	ServerVersion = "dev"

	// ProductName identifies the binary in the startup log line and in
	// --version output.
	ProductName = "quorumd"

	// DatagramBufferSize is the fixed receive buffer size for the UDP
	// transport. Payloads above this are silently truncated by the OS;
	// callers must ensure encoded Issues fit (see issue.MaxContentLen).
	DatagramBufferSize = 512

	// DefaultAdminAddr is the admin HTTP bind address used when a config
	// omits `api`.
	DefaultAdminAddr = "127.0.0.1:8000"

	// DefaultNodeAddr is the UDP bind address used when a config is not
	// supplied at all (see configuration.Default).
	DefaultNodeAddr = "127.0.0.1:18000"

	// HttpProfilePort is the well-known local pprof port. The quorumd
	// binary has no flag that starts a pprof listener on it.
	HttpProfilePort = 6060
)
