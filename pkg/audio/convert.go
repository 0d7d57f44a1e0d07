package audio

// ResampleMonoF32 resamples mono float32 samples from srcRate to dstRate
// using linear interpolation. If srcRate == dstRate (or either rate is
// non-positive), the input is returned unchanged.
//
// Capture devices commonly run at their native rate (44.1 or 48 kHz); the
// session uses this to bring captured frames down to [WireSampleRate] before
// encoding.
func ResampleMonoF32(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstSamples := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}

		out[i] = float32(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}
