package audio

import "encoding/binary"

// EncodePCM16 quantises float samples to signed 16-bit little-endian PCM.
//
// Each sample is clamped to [-1, 1] first; negative values are scaled by
// 32768 and non-negative values by 32767, truncating toward zero. This
// asymmetric scaling is part of the wire contract with the agent endpoint
// and must not be changed.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts signed 16-bit little-endian PCM back to float samples
// in [-1, 1], inverting the [EncodePCM16] scaling (negative / 32768,
// non-negative / 32767). A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}
