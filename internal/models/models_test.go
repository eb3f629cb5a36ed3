package models

import "testing"

func TestEfficiency(t *testing.T) {
	cases := []struct {
		ach, target, want int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{1, 3, 33},
		{2, 3, 67},
		{150, 150, 100},
		{10, 0, 0},
	}
	for _, c := range cases {
		if got := Efficiency(c.ach, c.target); got != c.want {
			t.Errorf("Efficiency(%d, %d) = %d, want %d", c.ach, c.target, got, c.want)
		}
	}
}

func TestStageNames(t *testing.T) {
	want := []string{"Triage", "Repairing", "Testing", "Resolved"}
	for i, s := range Stages() {
		if s.String() != want[i] {
			t.Fatalf("stage %d: expected %s got %s", i, want[i], s.String())
		}
	}
	if Stage(9).String() != "N/A" {
		t.Fatalf("out of range stage should be N/A")
	}
}

func TestAverageEfficiency(t *testing.T) {
	if AverageEfficiency(nil) != 0 {
		t.Fatalf("empty list should average 0")
	}
	ms := []Machine{{Efficiency: 50}, {Efficiency: 75}}
	if got := AverageEfficiency(ms); got != 63 {
		t.Fatalf("expected 63 got %d", got)
	}
}
