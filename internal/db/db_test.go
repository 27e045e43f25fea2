package db

import (
	"strings"
	"testing"

	"github.com/zulandar/presale/internal/config"
	"github.com/zulandar/presale/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want []string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", Name: "presale"},
			want: []string{"root@tcp(127.0.0.1:3306)/presale?", "parseTime=true"},
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, User: "svc", Password: "s3cret", Name: "presale_prod"},
			want: []string{"svc:s3cret@tcp(db.internal:3307)/presale_prod?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("DSN() = %q, want to contain %q", got, w)
				}
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestOpenMemory_MigratesAllModels(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !gdb.Migrator().HasIndex(&models.PresalePlanComment{}, "VoteKey") {
		t.Error("expected unique index on presale_plan_comments.vote_key")
	}
}

func TestConnect_SQLite(t *testing.T) {
	path := t.TempDir() + "/presale.db"
	gdb, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}
