package config

import (
	"net"
	"os"
	"time"

	"atmosfera/internal/logging"

	"github.com/go-sql-driver/mysql"
)

const dbDialTimeout = 5 * time.Second

// GetDatabaseDSN builds the MySQL DSN from the environment.
// A complete DB_* set wins over DATABASE_DSN, which wins over the local default.
// parseTime is always on since measurement rows scan into time.Time.
func GetDatabaseDSN() string {
	cfg, ok := dsnFromParts()
	if !ok {
		cfg = localDSN()
		if raw := os.Getenv("DATABASE_DSN"); raw != "" {
			parsed, err := mysql.ParseDSN(raw)
			if err != nil {
				logging.Warn().Err(err).Msg("ignoring invalid DATABASE_DSN")
			} else {
				cfg = parsed
			}
		}
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = dbDialTimeout
	}
	return cfg.FormatDSN()
}

func dsnFromParts() (*mysql.Config, bool) {
	user, password := os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")
	host, port, name := os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME")
	if user == "" || password == "" || host == "" || port == "" || name == "" {
		return nil, false
	}
	cfg := mysql.NewConfig()
	cfg.User, cfg.Passwd = user, password
	cfg.Net, cfg.Addr = "tcp", net.JoinHostPort(host, port)
	cfg.DBName = name
	return cfg, true
}

func localDSN() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User, cfg.Passwd = "myapp", "mypassword123"
	cfg.Net, cfg.Addr = "tcp", "localhost:3306"
	cfg.DBName = "atmosfera"
	return cfg
}
