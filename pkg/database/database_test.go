package database

import (
	"testing"

	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/model"
)

func TestDialectorSelectsDriver(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "mysql", want: "mysql"},
		{driver: "postgres", want: "postgres"},
		{driver: "sqlite", want: "sqlite"},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(&config.DatabaseConfig{Driver: tt.driver, Path: ":memory:"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Dialector() error = %v", err)
			}
			if d.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.want)
			}
		})
	}
}

func TestMigrateCreatesTrainingTables(t *testing.T) {
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: "file:migrate_test?mode=memory&cache=shared"}, "release")
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, m := range []interface{}{&model.User{}, &model.TrainingSession{}} {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}
