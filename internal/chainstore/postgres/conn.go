// Package postgres is the chainstore.Store implementation backing real
// deployments: a blocks table tracking the active chain, queried through
// pgx and migrated with golang-migrate.
package postgres

import "fmt"

// ConnParams mirrors dbconn.DBConnectionParams's DSN-builder shape, narrowed
// to the fields the chain store actually needs.
type ConnParams struct {
	Host     string
	Port     int
	Username string
	Password string
	DBName   string
	SSLMode  string
}

func (p ConnParams) dsn() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.Username, p.Password, p.Host, p.Port, p.DBName, sslMode)
}
