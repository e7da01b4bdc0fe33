package window

// ToPunctual converts cumulative counts into daily deltas. The first delta is
// the first cumulative value; negative deltas are kept.
func ToPunctual(cumulative []float64) []float64 {
	out := make([]float64, len(cumulative))
	for i, v := range cumulative {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = v - cumulative[i-1]
	}
	return out
}

// ToCumulative is the prefix sum inverse of ToPunctual.
func ToCumulative(punctual []float64) []float64 {
	out := make([]float64, len(punctual))
	var sum float64
	for i, v := range punctual {
		sum += v
		out[i] = sum
	}
	return out
}
