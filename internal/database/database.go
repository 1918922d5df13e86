package database

import (
	"database/sql"
	"log"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/models"
)

// Connect opens the database, creating it first when missing, and runs migrations.
func Connect(dsn string, production bool) *gorm.DB {
	if err := ensureDatabase(dsn); err != nil {
		log.Fatalf("failed to ensure database: %v", err)
	}

	level := logger.Info
	if production {
		level = logger.Warn
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	return conn
}

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	}
}

func migrate(conn *gorm.DB) error {
	for _, model := range Models() {
		if err := conn.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

func ensureDatabase(dsn string) error {
	masterDSN, dbName, ok := maintenanceDSN(dsn)
	if !ok {
		return nil
	}

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}

// maintenanceDSN rewrites a postgres URL to point at the "postgres"
// maintenance database and returns the target database name.
func maintenanceDSN(dsn string) (string, string, bool) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return "", "", false
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", "", false
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return "", "", false
	}

	parsed.Path = "/postgres"
	return parsed.String(), dbName, true
}
