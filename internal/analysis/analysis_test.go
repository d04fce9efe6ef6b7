package analysis

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func cp(v int) Score   { return Score{CP: intPtr(v)} }
func mate(v int) Score { return Score{Mate: intPtr(v)} }

func TestToCentipawns(t *testing.T) {
	tests := []struct {
		name string
		cp   *int
		mate *int
		want *int
	}{
		{"cp", intPtr(42), nil, intPtr(42)},
		{"white mates", nil, intPtr(3), intPtr(MateScoreCP)},
		{"black mates", nil, intPtr(-2), intPtr(-MateScoreCP)},
		{"mate wins over cp", intPtr(10), intPtr(1), intPtr(MateScoreCP)},
		{"unknown", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToCentipawns(tt.cp, tt.mate)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToCentipawns() = %v, want %v", deref(got), deref(tt.want))
			}
		})
	}
}

func TestCPL(t *testing.T) {
	tests := []struct {
		name   string
		before Score
		after  Score
		white  bool
		want   *int
	}{
		{"white loses 80", cp(30), cp(-50), true, intPtr(80)},
		{"white improves floors at zero", cp(-50), cp(30), true, intPtr(0)},
		{"black loses 120", cp(-20), cp(100), false, intPtr(120)},
		{"black improves", cp(100), cp(-20), false, intPtr(0)},
		{"white allows mate", cp(0), mate(-4), true, intPtr(MateScoreCP)},
		{"black misses mate", mate(-2), cp(-300), false, intPtr(MateScoreCP - 300)},
		{"before unknown", Score{}, cp(10), true, nil},
		{"after unknown", cp(10), Score{}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CPL(tt.before, tt.after, tt.white)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CPL() = %v, want %v", deref(got), deref(tt.want))
			}
		})
	}
}

func TestCPL_NeverNegative(t *testing.T) {
	values := []Score{cp(-900), cp(-35), cp(0), cp(12), cp(700), mate(1), mate(-1), mate(7), Score{}}
	for _, b := range values {
		for _, a := range values {
			for _, white := range []bool{true, false} {
				if got := CPL(b, a, white); got != nil && *got < 0 {
					t.Errorf("CPL(%v, %v, %v) = %d, want >= 0", b, a, white, *got)
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		cpl  *int
		ply  int
		want Classification
	}{
		{intPtr(0), 5, Book},
		{intPtr(15), 10, Book},
		{intPtr(15), 11, Best},
		{intPtr(16), 3, Best},
		{intPtr(20), 30, Best},
		{intPtr(25), 5, Good},
		{intPtr(50), 40, Good},
		{intPtr(51), 40, Inaccuracy},
		{intPtr(100), 40, Inaccuracy},
		{intPtr(101), 40, Mistake},
		{intPtr(300), 40, Mistake},
		{intPtr(350), 1, Blunder},
		{nil, 1, Good},
	}
	for _, tt := range tests {
		if got := Classify(tt.cpl, tt.ply); got != tt.want {
			t.Errorf("Classify(%v, %d) = %q, want %q", deref(tt.cpl), tt.ply, got, tt.want)
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	for _, ply := range []int{1, 10, 11, 60} {
		prev := -1
		for c := 0; c <= 1000; c++ {
			sev := Classify(intPtr(c), ply).Severity()
			if sev < prev {
				t.Fatalf("Classify(%d, %d) severity %d dropped below %d", c, ply, sev, prev)
			}
			prev = sev
		}
	}
}

func TestClassification_AtLeast(t *testing.T) {
	if !Blunder.AtLeast(Mistake) || !Mistake.AtLeast(Mistake) || Inaccuracy.AtLeast(Mistake) {
		t.Error("AtLeast(Mistake) ordering is wrong")
	}
	if !Inaccuracy.AtLeast(Inaccuracy) || Good.AtLeast(Inaccuracy) || Book.AtLeast(Good) {
		t.Error("AtLeast(Inaccuracy) ordering is wrong")
	}
}

func TestBestMove(t *testing.T) {
	tests := []struct {
		pv   string
		want string
	}{
		{"e2e4 e7e5 g1f3", "e2e4"},
		{"  e7e8q ", "e7e8q"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := BestMove(tt.pv); got != tt.want {
			t.Errorf("BestMove(%q) = %q, want %q", tt.pv, got, tt.want)
		}
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name   string
		before Score
		after  Score
		white  bool
		want   []string
	}{
		{"quiet", cp(20), cp(10), true, []string{}},
		{"white misses mate", mate(2), cp(400), true, []string{TagMateMissed}},
		{"white keeps mate", mate(3), mate(2), true, []string{}},
		{"white delivers mate", mate(1), cp(MateScoreCP), true, []string{}},
		{"black allows mate", cp(-50), mate(3), false, []string{TagMateAllowed}},
		{"black swings from mating to mated", mate(-1), mate(2), false, []string{TagMateMissed, TagMateAllowed}},
		{"already lost", mate(-3), mate(-2), true, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tags(tt.before, tt.after, tt.white)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
