package domain

// Compute derives the platform fee and seller net for one line amount in
// cents. It is a pure function so rounding edge cases can be tested
// exactly.
//
// Fixed mode caps the fee at the line amount. Percentage mode works in
// basis points with round-half-up integer rounding, clamped to
// [0, lineAmount]. The result always satisfies lineAmount = fee + net.
func Compute(lineAmount int64, cfg PlatformFeeConfig) (fee int64, net int64, err error) {
	if lineAmount < 0 {
		return 0, 0, ErrInvalidLineAmount
	}

	switch cfg.FeeMode {
	case FeeModeFixed:
		if cfg.FeeValue < 0 {
			return 0, 0, ErrInvalidFeeValue
		}
		fee = cfg.FeeValue
		if fee > lineAmount {
			fee = lineAmount
		}
	case FeeModePercentage:
		if cfg.FeeValue < 0 || cfg.FeeValue > 10000 {
			return 0, 0, ErrInvalidFeeValue
		}
		// round-half-up on basis points: (line*bp + 5000) / 10000
		fee = (lineAmount*cfg.FeeValue + 5000) / 10000
		if fee > lineAmount {
			fee = lineAmount
		}
		if fee < 0 {
			fee = 0
		}
	default:
		return 0, 0, ErrInvalidFeeMode
	}

	return fee, lineAmount - fee, nil
}
