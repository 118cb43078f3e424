package config

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestGetDatabaseDSN(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantUser string
		wantAddr string
		wantDB   string
		wantTO   time.Duration
	}{
		{
			name: "from DB_* vars",
			env: map[string]string{
				"DB_USER": "testuser", "DB_PASSWORD": "testpass", "DB_HOST": "testhost",
				"DB_PORT": "3307", "DB_NAME": "testdb",
			},
			wantUser: "testuser", wantAddr: "testhost:3307", wantDB: "testdb", wantTO: dbDialTimeout,
		},
		{
			name: "DB_* vars win over DATABASE_DSN",
			env: map[string]string{
				"DB_USER": "u", "DB_PASSWORD": "p", "DB_HOST": "h", "DB_PORT": "1", "DB_NAME": "d",
				"DATABASE_DSN": "other:x@tcp(other:3306)/otherdb",
			},
			wantUser: "u", wantAddr: "h:1", wantDB: "d", wantTO: dbDialTimeout,
		},
		{
			name:     "from DATABASE_DSN keeps its timeout",
			env:      map[string]string{"DATABASE_DSN": "custom:dsn@tcp(custom:3306)/customdb?timeout=2s"},
			wantUser: "custom", wantAddr: "custom:3306", wantDB: "customdb", wantTO: 2 * time.Second,
		},
		{
			name:     "invalid DATABASE_DSN falls back to default",
			env:      map[string]string{"DATABASE_DSN": "not a dsn"},
			wantUser: "myapp", wantAddr: "localhost:3306", wantDB: "atmosfera", wantTO: dbDialTimeout,
		},
		{
			name:     "partial DB_* vars fall back to default",
			env:      map[string]string{"DB_USER": "testuser", "DB_PASSWORD": "testpass"},
			wantUser: "myapp", wantAddr: "localhost:3306", wantDB: "atmosfera", wantTO: dbDialTimeout,
		},
		{
			name:     "default",
			wantUser: "myapp", wantAddr: "localhost:3306", wantDB: "atmosfera", wantTO: dbDialTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DATABASE_DSN"} {
				t.Setenv(k, tt.env[k])
			}
			dsn := GetDatabaseDSN()
			got, err := mysql.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("GetDatabaseDSN() = %q does not parse: %v", dsn, err)
			}
			if got.User != tt.wantUser || got.Addr != tt.wantAddr || got.DBName != tt.wantDB {
				t.Errorf("GetDatabaseDSN() = %s@%s/%s, want %s@%s/%s", got.User, got.Addr, got.DBName, tt.wantUser, tt.wantAddr, tt.wantDB)
			}
			if !got.ParseTime {
				t.Errorf("GetDatabaseDSN() = %q, want parseTime enabled", dsn)
			}
			if got.Timeout != tt.wantTO {
				t.Errorf("GetDatabaseDSN() timeout = %v, want %v", got.Timeout, tt.wantTO)
			}
		})
	}
}
