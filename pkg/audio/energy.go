package audio

// maxSquaredAmplitude is the squared amplitude of a full-scale int16 sample,
// used to normalise frame energy into [0, 1].
const maxSquaredAmplitude = 32768.0 * 32768.0

// Energy computes the normalised energy of a PCM frame: the mean squared
// sample amplitude scaled to [0, 1]. A frame of digital silence scores 0;
// a full-scale square wave scores 1.
//
// Odd trailing bytes (torn int16 samples) are ignored. An empty frame
// scores 0.
func Energy(f Frame) float64 {
	n := len(f.Data) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(f.Data[2*i]) | uint16(f.Data[2*i+1])<<8)
		v := float64(s)
		sum += v * v
	}
	return sum / (float64(n) * maxSquaredAmplitude)
}
