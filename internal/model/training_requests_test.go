package model

import (
	"encoding/json"
	"testing"
)

func TestFractionalTimingsRoundToMillis(t *testing.T) {
	tests := []struct {
		name string
		body string
		got  func(raw []byte) (int64, error)
		want int64
	}{
		{"adjustmentTime", `{"userWeight":70,"suitWeight":150,"additionalWeight":10,"adjustmentTime":1500.5}`, func(raw []byte) (int64, error) {
			var r BuoyancyRequest
			err := json.Unmarshal(raw, &r)
			return r.Input().ElapsedMs, err
		}, 1501},
		{"holdTime", `{"currentForce":45,"holdTime":2999.4}`, func(raw []byte) (int64, error) {
			var r HatchRequest
			err := json.Unmarshal(raw, &r)
			return r.Input().HoldTimeMs, err
		}, 2999},
		{"repairTime", `{"screwTorque":3,"completedScrews":8,"screwCount":8,"repairTime":12000.75}`, func(raw []byte) (int64, error) {
			var r RepairRequest
			err := json.Unmarshal(raw, &r)
			return r.Input().ElapsedMs, err
		}, 12001},
		{"stabilityTime", `{"positionError":1,"angleError":2,"stabilityTime":0.2}`, func(raw []byte) (int64, error) {
			var r InstallationRequest
			err := json.Unmarshal(raw, &r)
			return r.Input().StabilityTimeMs, err
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got([]byte(tt.body))
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d ms, want %d", got, tt.want)
			}
		})
	}
}

func TestBuoyancyWeightDistribution(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		weights *WeightDistribution
		wantErr bool
	}{
		{"absent", nil, false},
		{"matches", &WeightDistribution{Chest: f(5), Belt: f(3), Ankles: f(2)}, false},
		{"within tolerance", &WeightDistribution{Chest: f(5), Belt: f(3), Ankles: f(2.005)}, false},
		{"mismatch", &WeightDistribution{Chest: f(5), Belt: f(3), Ankles: f(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := BuoyancyRequest{UserWeight: 70, SuitWeight: 150, AdditionalWeight: f(10), Weights: tt.weights}
			if err := r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
