package diff

// DefaultThreshold is the keyframe selection threshold in mean per-pixel
// intensity difference.
const DefaultThreshold = 2.0

// SelectKeyframes returns the indices of frames whose difference from their
// predecessor strictly exceeds threshold. scores[i] compares frames i and
// i+1, so the emitted index is i+1, the second frame of the pair. A score
// exactly equal to the threshold is not selected; MismatchScore exceeds any
// finite threshold and always is. The result is strictly increasing.
func SelectKeyframes(scores []float64, threshold float64) []int {
	keyframes := make([]int, 0, len(scores))
	for i, score := range scores {
		if score > threshold {
			keyframes = append(keyframes, i+1)
		}
	}
	return keyframes
}
