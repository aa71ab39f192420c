package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/model"
)

func TestNewReportStorage(t *testing.T) {
	tests := []struct {
		typ     string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"none", true, false},
		{"local", false, false},
		{"oss", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			rs, err := NewReportStorage(&config.StorageConfig{Type: tt.typ, LocalPath: t.TempDir()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (rs == nil) != tt.wantNil {
				t.Errorf("storage = %v, wantNil %v", rs, tt.wantNil)
			}
		})
	}
}

func TestLocalReportArchive(t *testing.T) {
	dir := t.TempDir()
	rs, err := NewReportStorage(&config.StorageConfig{Type: "local", LocalPath: dir})
	if err != nil {
		t.Fatal(err)
	}

	end := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	s := &model.TrainingSession{
		SessionID:    "nbl_report_0001",
		UserID:       "trainee-01",
		TrainingType: model.TrainingNBL,
		StartTime:    end.Add(-5 * time.Minute),
		EndTime:      &end,
		OverallScore: 91,
		Grade:        "A",
		Status:       model.SessionCompleted,
	}
	phases := model.NewPhaseData()
	phases.Record(model.PhaseBuoyancy, 100, true)
	s.SetPhases(phases)
	s.SetPerformance(model.PerformanceMetrics{TotalTimeMs: 300000, Attempts: 2})

	if err := rs.Archive(context.Background(), s); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "reports", "trainee-01", "nbl_report_0001.json"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var got TrainingReport
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.OverallScore != 91 || got.Grade != "A" || got.PhaseData.Scores[0] != 100 || got.Performance.TotalTimeMs != 300000 {
		t.Errorf("report = %+v", got)
	}
}
