package scoring

import "testing"

func TestBuoyancy(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name       string
		user, suit float64
		extra      float64
		wantStatus BuoyancyStatus
		wantScore  int
	}{
		{name: "exact target", user: 70, suit: 150, extra: 10, wantStatus: Neutral, wantScore: 100},
		{name: "other exact split", user: 80, suit: 140, extra: 10, wantStatus: Neutral, wantScore: 100},
		{name: "tolerance boundary is neutral", user: 70, suit: 160, extra: 0.1, wantStatus: Neutral, wantScore: 90},
		{name: "half kilo light", user: 70, suit: 150, extra: 9.5, wantStatus: Floating, wantScore: 50},
		{name: "half kilo heavy", user: 70, suit: 150, extra: 10.5, wantStatus: Sinking, wantScore: 50},
		{name: "far too heavy clamps at zero", user: 70, suit: 150, extra: 12, wantStatus: Sinking, wantScore: 0},
		{name: "far too light clamps at zero", user: 30, suit: 100, extra: 0, wantStatus: Floating, wantScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Buoyancy(p, tt.user, tt.suit, tt.extra)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Completed() != (tt.wantStatus == Neutral) {
				t.Errorf("Completed() = %v for status %v", got.Completed(), got.Status)
			}
			if got.TotalWeight != tt.user+tt.suit+tt.extra {
				t.Errorf("TotalWeight = %v", got.TotalWeight)
			}
		})
	}
}

func TestGripForce(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		force       float64
		wantScore   int
		wantOptimal bool
	}{
		{force: 30, wantScore: 100, wantOptimal: true},
		{force: 45, wantScore: 100, wantOptimal: true},
		{force: 60, wantScore: 100, wantOptimal: true},
		{force: 29.999, wantScore: 50, wantOptimal: false},
		{force: 15, wantScore: 25, wantOptimal: false},
		{force: 0, wantScore: 0, wantOptimal: false},
		{force: 61, wantScore: 98, wantOptimal: false},
		{force: 100, wantScore: 20, wantOptimal: false},
		{force: 200, wantScore: 0, wantOptimal: false},
	}

	for _, tt := range tests {
		got := GripForce(p, tt.force)
		if got.Score != tt.wantScore || got.IsOptimal != tt.wantOptimal {
			t.Errorf("GripForce(%v) = {score %d, optimal %v}, want {score %d, optimal %v}",
				tt.force, got.Score, got.IsOptimal, tt.wantScore, tt.wantOptimal)
		}
	}
}

func TestTorque(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		torque      float64
		wantScore   int
		wantInRange bool
	}{
		{torque: 3.0, wantScore: 100, wantInRange: true},
		{torque: 3.5, wantScore: 90, wantInRange: true},
		{torque: 2.5, wantScore: 90, wantInRange: true},
		{torque: 4.0, wantScore: 80, wantInRange: false},
		{torque: 8.0, wantScore: 0, wantInRange: false},
		{torque: 50, wantScore: 0, wantInRange: false},
	}

	for _, tt := range tests {
		got := Torque(p, tt.torque)
		if got.Score != tt.wantScore || got.IsInRange != tt.wantInRange {
			t.Errorf("Torque(%v) = {score %d, inRange %v}, want {score %d, inRange %v}",
				tt.torque, got.Score, got.IsInRange, tt.wantScore, tt.wantInRange)
		}
	}
}

func TestRepair(t *testing.T) {
	p := DefaultParams()

	t.Run("all screws complete regardless of torque", func(t *testing.T) {
		for _, torque := range []float64{0, 3, 25, 50} {
			got := Repair(p, torque, 8, 8)
			if !got.Completed {
				t.Errorf("torque %v: Completed = false, want true", torque)
			}
			if got.Progress != 100 {
				t.Errorf("torque %v: Progress = %d, want 100", torque, got.Progress)
			}
			if got.Score != got.TorqueResult.Score {
				t.Errorf("torque %v: Score = %d, want torque score %d", torque, got.Score, got.TorqueResult.Score)
			}
		}
	})

	t.Run("half progress halves torque score", func(t *testing.T) {
		got := Repair(p, 3.5, 4, 8)
		if got.Progress != 50 {
			t.Errorf("Progress = %d, want 50", got.Progress)
		}
		if got.Score != 45 {
			t.Errorf("Score = %d, want 45", got.Score)
		}
		if got.Completed {
			t.Error("Completed = true, want false")
		}
	})

	t.Run("no screws yet", func(t *testing.T) {
		got := Repair(p, 3, 0, 8)
		if got.Score != 0 || got.Progress != 0 || got.Completed {
			t.Errorf("got %+v, want zero progress", got)
		}
	})
}

func TestInstallation(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name          string
		position      float64
		angle         float64
		wantPosition  int
		wantAngle     int
		wantScore     int
		wantIsPrecise bool
	}{
		{name: "perfect", position: 0, angle: 0, wantPosition: 100, wantAngle: 100, wantScore: 100, wantIsPrecise: true},
		{name: "halfway", position: 5, angle: 2.5, wantPosition: 50, wantAngle: 50, wantScore: 50, wantIsPrecise: true},
		{name: "tolerance boundary", position: 10, angle: 5, wantPosition: 0, wantAngle: 0, wantScore: 0, wantIsPrecise: true},
		{name: "just outside position", position: 10.0001, angle: 0, wantPosition: 0, wantAngle: 100, wantScore: 50, wantIsPrecise: false},
		{name: "angle far off", position: 2, angle: 180, wantPosition: 80, wantAngle: 0, wantScore: 40, wantIsPrecise: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Installation(p, tt.position, tt.angle)
			if got.PositionScore != tt.wantPosition || got.AngleScore != tt.wantAngle {
				t.Errorf("component scores = (%d, %d), want (%d, %d)", got.PositionScore, got.AngleScore, tt.wantPosition, tt.wantAngle)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.IsPrecise != tt.wantIsPrecise {
				t.Errorf("IsPrecise = %v, want %v", got.IsPrecise, tt.wantIsPrecise)
			}
		})
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name      string
		scores    [4]int
		wantScore int
		wantGrade Grade
	}{
		{name: "perfect", scores: [4]int{100, 100, 100, 100}, wantScore: 100, wantGrade: GradeAPlus},
		{name: "all ninety", scores: [4]int{90, 90, 90, 90}, wantScore: 90, wantGrade: GradeA},
		{name: "grade uses unrounded mean", scores: [4]int{95, 95, 94, 95}, wantScore: 95, wantGrade: GradeA},
		{name: "b", scores: [4]int{80, 85, 82, 81}, wantScore: 82, wantGrade: GradeB},
		{name: "c", scores: [4]int{70, 70, 70, 70}, wantScore: 70, wantGrade: GradeC},
		{name: "d", scores: [4]int{60, 60, 60, 60}, wantScore: 60, wantGrade: GradeD},
		{name: "f", scores: [4]int{59, 59, 59, 59}, wantScore: 59, wantGrade: GradeF},
		{name: "unset phases count as zero", scores: [4]int{100, 100, 0, 0}, wantScore: 50, wantGrade: GradeF},
		{name: "half rounds up", scores: [4]int{100, 100, 100, 98}, wantScore: 100, wantGrade: GradeAPlus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overall(tt.scores[0], tt.scores[1], tt.scores[2], tt.scores[3])
			if got.OverallScore != tt.wantScore || got.Grade != tt.wantGrade {
				t.Errorf("Overall(%v) = %+v, want {%d %s}", tt.scores, got, tt.wantScore, tt.wantGrade)
			}
		})
	}
}

func TestParamsNormalize(t *testing.T) {
	p := Params{ForceMin: 40, ForceMax: 20}.Normalize()
	want := DefaultParams()
	if p != want {
		t.Errorf("Normalize() = %+v, want defaults %+v", p, want)
	}

	custom := DefaultParams()
	custom.BuoyancyTarget = 250
	if got := custom.Normalize(); got.BuoyancyTarget != 250 {
		t.Errorf("Normalize() dropped custom target: %+v", got)
	}
}
