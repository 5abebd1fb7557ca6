package guardian

import "testing"

func TestEncodeProbRoundTrip(t *testing.T) {
	cases := []float64{0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99}
	for _, p := range cases {
		enc := EncodeProb(p)
		got := enc.Float()
		if diff := got - p; diff > 0.05 || diff < -0.05 {
			t.Errorf("EncodeProb(%v).Float() = %v, drifted more than 0.05", p, got)
		}
	}
}

func TestEncodeProbSaturates(t *testing.T) {
	if EncodeProb(1.0) != 255 {
		t.Errorf("EncodeProb(1.0) = %d, want 255", EncodeProb(1.0))
	}
	if EncodeProb(0.0) != 0 {
		t.Errorf("EncodeProb(0.0) = %d, want 0", EncodeProb(0.0))
	}
}

func TestProbFloatExtremesAvoidInfiniteLogit(t *testing.T) {
	if f := Prob(0).Float(); f <= 0 || f >= 0.5 {
		t.Errorf("Prob(0).Float() = %v, want a small positive value", f)
	}
	if f := Prob(255).Float(); f <= 0.5 || f >= 1 {
		t.Errorf("Prob(255).Float() = %v, want a value near 1", f)
	}
}

func TestEncodeProbMonotonic(t *testing.T) {
	prev := EncodeProb(0.001)
	for _, p := range []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.999} {
		cur := EncodeProb(p)
		if cur < prev {
			t.Errorf("EncodeProb not monotonic: EncodeProb(%v) = %d < previous %d", p, cur, prev)
		}
		prev = cur
	}
}
