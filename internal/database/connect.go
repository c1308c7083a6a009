package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/grabberapp/grabber/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
)

const (
	SqlDialect          = "postgres"
	SqlConnectionString = "host=%s user=%s password=%s dbname=%s port=%s sslmode=%s"
)

var (
	//go:embed migrations/*.sql
	migrations embed.FS

	dbLogger = logger.Get("DB")
)

type (
	Config struct {
		Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
		User     string `yaml:"user" env:"DB_USER" env-default:"grabber"`
		Password string `yaml:"password" env:"DB_PASSWORD"`
		Name     string `yaml:"name" env:"DB_NAME" env-default:"grabber"`
		Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
		SslMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	}

	// Queryable is the subset of sqlx behaviour the stores require,
	// satisfied by *sqlx.DB and easily faked in tests.
	Queryable interface {
		Exec(query string, args ...any) (sql.Result, error)
		Select(dest any, query string, args ...any) error
		Get(dest any, query string, args ...any) error
		Rebind(query string) string
	}

	Manager interface {
		Connect(Config) error
		Close() error
		GetSqlxDb() *sqlx.DB
	}

	manager struct {
		rawDb *sql.DB
		db    *sqlx.DB
	}

	sqlLogger struct {
		logger logger.Logger
	}

	gooseLogger struct {
		logger logger.Logger
	}
)

func New() *manager {
	return &manager{}
}

// Connect opens the Postgres connection described by the config, pinging
// with bounded retries before running any pending migrations. The SQL
// driver is wrapped so that every statement is logged through the
// package logger.
func (db *manager) Connect(config Config) error {
	dsn := fmt.Sprintf(SqlConnectionString, config.Host, config.User, config.Password, config.Name, config.Port, config.SslMode)
	rawDb, err := sql.Open(SqlDialect, dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	rawDb = sqldblogger.OpenDriver(dsn, rawDb.Driver(), &sqlLogger{dbLogger})

	attempt := 1
	for {
		err := rawDb.Ping()
		if err != nil {
			if attempt >= 5 {
				dbLogger.Emit(logger.ERROR, "All connection attempts FAILED!\n")
				return err
			}

			dbLogger.Emit(logger.WARNING, "Attempt (%v/5) failed... Retrying in 3s\n", attempt)
			attempt++
			time.Sleep(time.Second * 3)
			continue
		}

		db.rawDb = rawDb
		db.db = sqlx.NewDb(rawDb, SqlDialect)

		break
	}

	if err := db.executeMigrations(); err != nil {
		return err
	}

	dbLogger.Emit(logger.SUCCESS, "Database connection complete!\n")
	return nil
}

// executeMigrations runs the comp-time embedded SQL migrations (found in
// the 'migrations' dir in this package) against the connected DB.
func (db *manager) executeMigrations() error {
	if db.rawDb == nil {
		return errors.New("cannot execute migrations when DB manager has not yet connected")
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{dbLogger})
	if err := goose.SetDialect(SqlDialect); err != nil {
		return fmt.Errorf("failed to set dialect for DB migration: %w", err)
	}

	dbLogger.Emit(logger.INFO, "Checking for pending DB migrations...\n")
	if err := goose.Up(db.rawDb, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}

	dbLogger.Emit(logger.SUCCESS, "DB Goose migration complete!\n")
	return nil
}

func (db *manager) GetSqlxDb() *sqlx.DB {
	return db.db
}

func (db *manager) Close() error {
	if db.rawDb == nil {
		return nil
	}

	dbLogger.Emit(logger.STOP, "Closing database connection\n")
	return db.rawDb.Close()
}

func (l *sqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	switch level {
	case sqldblogger.LevelTrace, sqldblogger.LevelDebug, sqldblogger.LevelInfo:
		if query, ok := data["query"]; ok {
			l.logger.Emit(logger.VERBOSE, "%s [%vms] -- %s\n", msg, data["duration"], query)
		} else {
			l.logger.Emit(logger.VERBOSE, "%s [%vms]\n", msg, data["duration"])
		}
	case sqldblogger.LevelError:
		l.logger.Emit(logger.ERROR, "%s - %v\n", msg, data)
	}
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Emit(logger.INFO, format, v...)
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Emit(logger.FATAL, format, v...)
	panic(fmt.Sprintf(format, v...))
}
