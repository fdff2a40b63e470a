package fixtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/ory/dockertest/v3"
	"go.uber.org/zap"
)

const DEFAULT_POSTGRES_REPO = "postgres"
const DEFAULT_POSTGRES_VERSION = "13-alpine"

type PostgresOpt func(*Postgres)

func NewPostgres(d *Docker, opts ...PostgresOpt) *Postgres {
	f := &Postgres{
		docker: d,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func PostgresSettings(settings *ConnectionSettings) PostgresOpt {
	return func(f *Postgres) {
		f.settings = settings
	}
}

func PostgresRepo(repo string) PostgresOpt {
	return func(f *Postgres) {
		f.repo = repo
	}
}

func PostgresVersion(version string) PostgresOpt {
	return func(f *Postgres) {
		f.version = version
	}
}

// Tell docker to kill the container after an unreasonable amount of test time to prevent orphans. Defaults to 600 seconds.
func PostgresExpireAfter(expireAfter uint) PostgresOpt {
	return func(f *Postgres) {
		f.expireAfter = expireAfter
	}
}

// Wait this long for the database to accept connections. Defaults to 15 seconds.
func PostgresTimeoutAfter(timeoutAfter uint) PostgresOpt {
	return func(f *Postgres) {
		f.timeoutAfter = timeoutAfter
	}
}

func PostgresSkipTearDown() PostgresOpt {
	return func(f *Postgres) {
		f.skipTearDown = true
	}
}

// Postgres runs a throwaway postgres container attached to a Docker
// fixture's network, tuned for test speed over durability.
type Postgres struct {
	log          *zap.Logger
	docker       *Docker
	settings     *ConnectionSettings
	resource     *dockertest.Resource
	repo         string
	version      string
	expireAfter  uint
	timeoutAfter uint
	skipTearDown bool
}

// PostgresFixture adapts Postgres to a fixture Factory. dockerName is the
// fixture name of the Docker fixture it attaches to; register with
// FixtureUses(dockerName) so the pool is set up first.
func PostgresFixture(dockerName string, opts ...PostgresOpt) Factory {
	return func(ctx context.Context, deps Values) (any, Teardown, error) {
		d, _ := deps[normalizeName(dockerName)].(*Docker)
		if d == nil {
			return nil, nil, fmt.Errorf("postgres fixture requires docker fixture %q", dockerName)
		}
		f := NewPostgres(d, opts...)
		if err := f.SetUp(ctx); err != nil {
			return nil, nil, err
		}
		return f, f.TearDown, nil
	}
}

func (f *Postgres) GetSettings() *ConnectionSettings {
	return f.settings
}

func (f *Postgres) SetUp(ctx context.Context) error {
	f.log = logger()
	if f.repo == "" {
		f.repo = DEFAULT_POSTGRES_REPO
	}
	if f.version == "" {
		f.version = DEFAULT_POSTGRES_VERSION
	}
	if f.settings == nil {
		f.settings = &ConnectionSettings{
			User:       "postgres",
			Password:   generateString(),
			Database:   f.docker.GetNamePrefix(),
			DisableSSL: true,
		}
	}
	networks := make([]*dockertest.Network, 0)
	if f.docker.GetNetwork() != nil {
		networks = append(networks, f.docker.GetNetwork())
	}
	opts := dockertest.RunOptions{
		Repository: f.repo,
		Tag:        f.version,
		Env: []string{
			"POSTGRES_USER=" + f.settings.User,
			"POSTGRES_PASSWORD=" + f.settings.Password,
			"POSTGRES_DB=" + f.settings.Database,
		},
		Networks: networks,
		Cmd: []string{
			// https://www.postgresql.org/docs/current/non-durability.html
			"-c", "fsync=off",
			"-c", "synchronous_commit=off",
			"-c", "full_page_writes=off",
			"-c", "random_page_cost=1.1",
			"-c", fmt.Sprintf("shared_buffers=%vMB", memoryMB()/8),
			"-c", fmt.Sprintf("work_mem=%vMB", memoryMB()/8),
		},
	}
	var err error
	f.resource, err = f.docker.GetPool().RunWithOptions(&opts)
	if err != nil {
		return err
	}

	f.settings.Host = GetContainerAddress(f.resource, f.docker.GetNetwork())

	if f.expireAfter == 0 {
		f.expireAfter = 600
	}
	f.resource.Expire(f.expireAfter)

	if f.timeoutAfter == 0 {
		f.timeoutAfter = 15
	}
	if err := f.WaitForReady(ctx, time.Second*time.Duration(f.timeoutAfter)); err != nil {
		return err
	}
	return nil
}

func (f *Postgres) TearDown(ctx context.Context) error {
	defer f.log.Sync()
	if f.skipTearDown {
		return nil
	}
	f.docker.Purge(f.resource)
	return nil
}

func (f *Postgres) GetConnection(ctx context.Context, database string) (*pgx.Conn, error) {
	settings := f.settings.Copy()
	if database != "" {
		settings.Database = database
	}
	return settings.Connect(ctx)
}

func (f *Postgres) GetHostName() string {
	return GetHostName(f.resource)
}

func (f *Postgres) Ping(ctx context.Context) error {
	db, err := f.GetConnection(ctx, "")
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	return db.Ping(ctx)
}

// WaitForReady polls the database until a connection succeeds or d elapses.
// https://github.com/ory/dockertest/blob/v3/examples/PostgreSQL.md
func (f *Postgres) WaitForReady(ctx context.Context, d time.Duration) error {
	if err := Retry(d, func() error {
		port := GetContainerTcpPort(f.resource, f.docker.GetNetwork(), "5432")
		if port == "" {
			return fmt.Errorf("could not get port from container: %+v", f.resource.Container)
		}
		f.settings.Port = port

		db, err := f.settings.Connect(ctx)
		if err != nil {
			return err
		}
		return db.Close(ctx)
	}); err != nil {
		return fmt.Errorf("gave up waiting for postgres: %w", err)
	}

	return nil
}

func (f *Postgres) CreateDatabase(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("must provide a database name")
	}
	db, err := f.GetConnection(ctx, "")
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	_, err = db.Exec(ctx, fmt.Sprintf("CREATE DATABASE %v TEMPLATE template0", name))
	f.log.Debug("create database", zap.String("database", name), zap.String("container", f.GetHostName()), zap.Error(err))
	return err
}

// CopyDatabase creates a copy of an existing postgres database using the
// source as a template. source defaults to the primary database.
func (f *Postgres) CopyDatabase(ctx context.Context, source string, target string) error {
	if source == "" {
		source = f.settings.Database
	}
	db, err := f.GetConnection(ctx, "")
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	_, err = db.Exec(ctx, fmt.Sprintf("CREATE DATABASE %v TEMPLATE %v", target, source))
	f.log.Debug("copy database", zap.String("source", source), zap.String("target", target), zap.String("container", f.GetHostName()), zap.Error(err))
	return err
}

func (f *Postgres) DropDatabase(ctx context.Context, name string) error {
	db, err := f.GetConnection(ctx, name)
	if err != nil {
		return err
	}

	// Revoke future connections.
	if _, err := db.Exec(ctx, fmt.Sprintf("REVOKE CONNECT ON DATABASE %v FROM public", name)); err != nil {
		db.Close(ctx)
		return err
	}

	// Terminate all other connections.
	if _, err := db.Exec(ctx, "SELECT pid, pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = current_database() AND pid <> pg_backend_pid()"); err != nil {
		db.Close(ctx)
		return err
	}
	db.Close(ctx)

	admin, err := f.GetConnection(ctx, "")
	if err != nil {
		return err
	}
	defer admin.Close(ctx)
	_, err = admin.Exec(ctx, fmt.Sprintf("DROP DATABASE %v", name))
	f.log.Debug("drop database", zap.String("database", name), zap.String("container", f.GetHostName()), zap.Error(err))
	return err
}

func (f *Postgres) TableExists(ctx context.Context, database, schema, table string) (bool, error) {
	db, err := f.GetConnection(ctx, database)
	if err != nil {
		return false, err
	}
	defer db.Close(ctx)
	query := "SELECT count(*) FROM pg_catalog.pg_tables WHERE schemaname = $1 AND tablename = $2"
	count := 0
	if err := db.QueryRow(ctx, query, schema, table).Scan(&count); err != nil {
		return false, err
	}
	return count == 1, nil
}

func (f *Postgres) GetTableColumns(ctx context.Context, database, schema, table string) ([]string, error) {
	db, err := f.GetConnection(ctx, database)
	if err != nil {
		return nil, err
	}
	defer db.Close(ctx)
	var columnNames pgtype.TextArray
	query := "SELECT array_agg(column_name::text) FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2"
	if err := db.QueryRow(ctx, query, schema, table).Scan(&columnNames); err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(columnNames.Elements))
	for _, text := range columnNames.Elements {
		cols = append(cols, text.String)
	}
	return cols, nil
}

func (f *Postgres) GetTables(ctx context.Context, database string) ([]string, error) {
	db, err := f.GetConnection(ctx, database)
	if err != nil {
		return nil, err
	}
	defer db.Close(ctx)
	tables := []string{}
	rows, err := db.Query(ctx, "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname != 'information_schema' AND schemaname != 'pg_catalog'")
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}
