package signal

// Source is the high-level interface for the reflection-coefficient feedback
// signal, regardless of how it is obtained (channel-access gateway, archiver,
// simulation). Each read returns the current sample, never a historical one.
type Source interface {
	// ReadCoefficient returns the latest reflection-coefficient sample.
	ReadCoefficient() (float64, error)
}
