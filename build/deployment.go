package build

// DeploymentType distinguishes a production build, which logs through the
// caller-supplied backend, from a development build, which logs to stdout
// for unit tests and local daemon runs.
type DeploymentType byte

const (
	// Production is used for release builds embedding this module.
	Production DeploymentType = iota

	// Development is used for unit tests and local daemon runs.
	Development
)

// Deployment selects which of the above a NewSubLogger call runs under.
var Deployment = Development
