package entity

import "testing"

func TestDeriveQualityStatus(t *testing.T) {
	cases := []struct {
		passRate float64
		want     string
	}{
		{100, QualityQualified},
		{99.99, QualityDefective},
		{80, QualityDefective},
		{79.99, QualityRejected},
		{0, QualityRejected},
	}
	for _, c := range cases {
		if got := DeriveQualityStatus(c.passRate); got != c.want {
			t.Errorf("DeriveQualityStatus(%v) = %s, want %s", c.passRate, got, c.want)
		}
	}
}
