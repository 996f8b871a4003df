package lending

import "lendpool/crypto"

// OracleSample is one cumulative observation from a liquidity-book pair.
// CumulativeID integrates the active bin id over time, so two samples divided
// by their time distance yield the average bin over the window.
type OracleSample struct {
	CumulativeID          uint64
	CumulativeVolatility  uint64
	CumulativeBinCrossed  uint64
	// Timestamp is when the sample was recorded; zero means the pair does
	// not report sample times.
	Timestamp uint64
}

// OracleClient is the host-side port for liquidity-book pair oracles.
type OracleClient interface {
	// SampleFrom returns the cumulative sample recorded secondsAgo in the
	// past; zero requests the freshest sample.
	SampleFrom(pair crypto.Address, secondsAgo uint64) (OracleSample, error)
	// BinStep reports the pair's bin step in basis points.
	BinStep(pair crypto.Address) (uint16, error)
}
