package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/fs"
)

const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
)

var GooseRunFunc = goose.Run // mockable

func dsn(dbName string, admin bool, conf *core.Config) (string, error) {
	dbUser, dbPwd := conf.Database.User, conf.Database.Password
	if admin && conf.Database.AdminUser != "" {
		dbUser, dbPwd = conf.Database.AdminUser, conf.Database.AdminPassword
	}

	switch conf.Database.Engine {
	case EnginePostgres:
		sslMode := "require"
		if conf.Database.DisableTLS {
			sslMode = "disable"
		}
		q := make(url.Values)
		q.Set("sslmode", sslMode)
		q.Set("timezone", "utc")

		u := url.URL{
			Scheme:   EnginePostgres,
			User:     url.UserPassword(dbUser, dbPwd),
			Host:     conf.Database.Address(),
			Path:     dbName,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	case EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.User = dbUser
		cfg.Passwd = dbPwd
		cfg.Net = "tcp"
		cfg.Addr = conf.Database.Address()
		cfg.DBName = dbName
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.MultiStatements = true // goose runs whole migration files
		cfg.ClientFoundRows = true // matched rows, not changed rows
		if !conf.Database.DisableTLS {
			cfg.TLSConfig = "true"
		}
		return cfg.FormatDSN(), nil
	default:
		return "", errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	source, err := dsn(dbName, admin, conf)
	if err != nil {
		return nil, err
	}
	return sqlx.Open(conf.Database.Engine, source)
}

// Open opens the application database of the configured engine.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Ping waits for the database to be ready.
func Ping(db *sqlx.DB) error {
	return ping(db)
}

func exists(db *sqlx.DB, query string, args ...interface{}) (bool, error) {
	var n int
	if err := db.Get(&n, db.Rebind(query), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" || conf.Database.AdminUser == "" {
		return nil
	}

	var (
		found bool
		err   error
		stmts []string
	)
	switch conf.Database.Engine {
	case EnginePostgres:
		found, err = exists(db, "SELECT COUNT(*) FROM pg_roles WHERE rolname = ?", conf.Database.User)
		stmts = []string{
			fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password),
		}
	case EngineMySQL:
		found, err = exists(db, "SELECT COUNT(*) FROM mysql.user WHERE user = ?", conf.Database.User)
		stmts = []string{
			fmt.Sprintf("CREATE USER '%s'@'%%' IDENTIFIED BY '%s'", conf.Database.User, conf.Database.Password),
			fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", conf.Database.Name, conf.Database.User),
		}
	}
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}

	// create app user if not exist
	if !found {
		for _, q := range stmts {
			if _, err = db.Exec(q); err != nil {
				return errors.Wrap(err, "creating app user")
			}
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	var (
		found bool
		err   error
	)
	switch conf.Database.Engine {
	case EnginePostgres:
		found, err = exists(db, "SELECT COUNT(*) FROM pg_database WHERE datname = ?", conf.Database.Name)
	case EngineMySQL:
		found, err = exists(db, "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", conf.Database.Name)
	}
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// maintenanceDB is the database admins connect to before the app database exists.
func maintenanceDB(engine string) string {
	if engine == EnginePostgres {
		return "postgres"
	}
	return ""
}

// CreateIfNotExist creates the app database (and the app user, when admin credentials are configured).
func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	db, err := open(maintenanceDB(conf.Database.Engine), true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createDB(db, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	return nil
}

// Migrate runs the goose command (up, down, status...) against the embedded migrations of the engine.
func Migrate(db *sqlx.DB, engine, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(engine); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := GooseRunFunc(command, db.DB, appfs.MigrationsDir(engine), args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}
