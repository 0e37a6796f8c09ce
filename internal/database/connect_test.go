package database

import (
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rickgao/coinfo/internal/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		host     string
		db       string
		password string
		sslmode  string
	}{
		{
			name:     "explicit",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 6432, Name: "coinfo", User: "svc", Password: "pw", SSLMode: "require"},
			host:     "db.internal:6432",
			db:       "coinfo",
			password: "pw",
			sslmode:  "require",
		},
		{
			name:     "defaults",
			cfg:      config.DatabaseConfig{Host: "localhost", Name: "coinfo", User: "svc", Password: "pw"},
			host:     "localhost:5432",
			db:       "coinfo",
			password: "pw",
			sslmode:  "prefer",
		},
		{
			name:     "reserved characters in password",
			cfg:      config.DatabaseConfig{Host: "localhost", Name: "coinfo", User: "svc", Password: "p@ss:w/rd?#", SSLMode: "disable"},
			host:     "localhost:5432",
			db:       "coinfo",
			password: "p@ss:w/rd?#",
			sslmode:  "disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := DSN(tt.cfg)

			u, err := url.Parse(dsn)
			if err != nil {
				t.Fatalf("parse %q: %v", dsn, err)
			}
			if u.Scheme != "postgres" || u.Host != tt.host || u.Path != "/"+tt.db {
				t.Errorf("dsn = %q", dsn)
			}
			if pw, _ := u.User.Password(); pw != tt.password {
				t.Errorf("password round-trip = %q, want %q", pw, tt.password)
			}
			if got := u.Query().Get("sslmode"); got != tt.sslmode {
				t.Errorf("sslmode = %q, want %q", got, tt.sslmode)
			}

			// pgx must accept what we render.
			pc, err := pgxpool.ParseConfig(dsn)
			if err != nil {
				t.Fatalf("pgxpool.ParseConfig: %v", err)
			}
			if pc.ConnConfig.Password != tt.password || pc.ConnConfig.Database != tt.db {
				t.Errorf("pgx parsed %q/%q", pc.ConnConfig.Password, pc.ConnConfig.Database)
			}
		})
	}
}
