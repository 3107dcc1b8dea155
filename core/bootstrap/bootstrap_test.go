package bootstrap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/vpnshop/core/config"
	coredatabase "github.com/m3rciful/vpnshop/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	connected := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil || connected {
		t.Fatalf("database touched without config: %+v connected=%v", res, connected)
	}
}

func TestRunReportsConnectFailure(t *testing.T) {
	boom := errors.New("refused")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunMigratesInMemorySQLite(t *testing.T) {
	dbCfg := coredatabase.Config{
		Driver:        coredatabase.DriverSQLite,
		Path:          ":memory:",
		MigrationsDir: filepath.Join("..", "..", "migrations"),
	}
	if err := dbCfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &dbCfg,
		LoggerInit: noLogger,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.DB.Close()

	if _, err := res.DB.Exec(`INSERT INTO users (id, username) VALUES (1, 'ann')`); err != nil {
		t.Fatalf("schema missing on returned pool: %v", err)
	}
	var n int
	if err := res.DB.Get(&n, `SELECT COUNT(1) FROM users`); err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}
