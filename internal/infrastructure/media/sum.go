package media

import "math"

// mixSamples writes the saturating sum of a and b into dst. Inputs shorter
// than dst contribute silence for the missing samples.
func mixSamples(dst, a, b []int16) {
	for i := range dst {
		var sum int32
		if i < len(a) {
			sum += int32(a[i])
		}
		if i < len(b) {
			sum += int32(b[i])
		}
		switch {
		case sum > math.MaxInt16:
			sum = math.MaxInt16
		case sum < math.MinInt16:
			sum = math.MinInt16
		}
		dst[i] = int16(sum)
	}
}

func float32ToInt16(dst []int16, src []float32) {
	for i, v := range src {
		switch {
		case v >= 1:
			dst[i] = math.MaxInt16
		case v <= -1:
			dst[i] = math.MinInt16
		default:
			dst[i] = int16(v * math.MaxInt16)
		}
	}
}

// remixChannels converts interleaved samples between channel layouts. Mono is
// copied to every output channel; folding to mono averages the inputs; other
// layouts map output channel c to input channel c mod from.
func remixChannels(src []int16, from, to int) []int16 {
	if from <= 0 || to <= 0 || from == to {
		return src
	}
	frames := len(src) / from
	dst := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		in := src[f*from : (f+1)*from]
		out := dst[f*to : (f+1)*to]
		switch {
		case from == 1:
			for c := range out {
				out[c] = in[0]
			}
		case to == 1:
			var sum int32
			for _, v := range in {
				sum += int32(v)
			}
			out[0] = int16(sum / int32(from))
		default:
			for c := range out {
				out[c] = in[c%from]
			}
		}
	}
	return dst
}
