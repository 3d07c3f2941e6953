package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/tenantcore/backend/internal/infrastructure/config"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/migration"
	"github.com/tenantcore/backend/migrations"
	"go.uber.org/zap"
)

const auditTimeout = 30 * time.Second

// env is what a command runs against
type env struct {
	log            *zap.Logger
	args           []string
	migrationsPath string
	db             *sql.DB
	migrator       *migration.Migrator
}

type command struct {
	needsDB  bool
	migrates bool
	run      func(e *env) error
}

var commands = map[string]command{
	"up": {needsDB: true, migrates: true, run: func(e *env) error {
		return e.migrator.Up()
	}},
	"down": {needsDB: true, migrates: true, run: func(e *env) error {
		return e.migrator.Down()
	}},
	"step": {needsDB: true, migrates: true, run: func(e *env) error {
		n, err := intArg(e.args, "step count")
		if err != nil {
			return err
		}
		return e.migrator.Steps(n)
	}},
	"force": {needsDB: true, migrates: true, run: func(e *env) error {
		v, err := intArg(e.args, "version")
		if err != nil {
			return err
		}
		return e.migrator.Force(v)
	}},
	"version": {needsDB: true, migrates: true, run: func(e *env) error {
		version, dirty, err := e.migrator.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			e.log.Info("No migrations applied")
			return nil
		}
		e.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
	"namespaces": {needsDB: true, run: auditNamespaces},
	"create":     {run: createMigration},
	"list":       {run: listMigrations},
}

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the ones built into the binary")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	e := &env{log: log, args: args[1:], migrationsPath: migrationsPath}
	if cmd.needsDB {
		closeDB, err := e.connect(cmd.migrates)
		if err != nil {
			log.Fatal("Failed to prepare database", zap.Error(err))
		}
		defer closeDB()
	}

	log.Debug("Running command", zap.String("command", args[0]), zap.String("migrations_path", migrationsPath))
	if err := cmd.run(e); err != nil {
		log.Fatal("Command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func (e *env) connect(withMigrator bool) (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	e.db = db
	if !withMigrator {
		return func() { _ = db.Close() }, nil
	}

	if e.migrationsPath != "" {
		e.migrator, err = migration.NewFromPath(db, e.migrationsPath, e.log)
	} else {
		e.migrator, err = migration.New(db, e.log)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	// Closing the migrator closes db as well
	return func() { _ = e.migrator.Close() }, nil
}

func (e *env) source() fs.FS {
	if e.migrationsPath != "" {
		return os.DirFS(e.migrationsPath)
	}
	return migrations.FS
}

func createMigration(e *env) error {
	if len(e.args) == 0 {
		return fmt.Errorf("migration name required: migrate create <name> [description]")
	}
	dir := e.migrationsPath
	if dir == "" {
		dir = "migrations"
	}
	description := ""
	if len(e.args) > 1 {
		description = e.args[1]
	}
	mf, err := migration.CreateMigration(dir, e.args[0], description)
	if err != nil {
		return err
	}
	e.log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func listMigrations(e *env) error {
	names, err := migration.ListMigrations(e.source())
	if err != nil {
		return err
	}
	e.log.Info("Available migrations", zap.Int("count", len(names)))
	for _, n := range names {
		fmt.Println("  -", n)
	}
	return nil
}

func auditNamespaces(e *env) error {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	statuses, err := migration.AuditNamespaces(ctx, e.db)
	if err != nil {
		return err
	}
	missing := 0
	for _, ns := range statuses {
		if !ns.Exists {
			missing++
			e.log.Warn("Tenant namespace missing",
				zap.String("slug", ns.Slug),
				zap.String("namespace", ns.Namespace),
				zap.String("status", ns.Status),
			)
		}
	}
	e.log.Info("Namespace audit finished", zap.Int("tenants", len(statuses)), zap.Int("missing", missing))
	if missing > 0 {
		return fmt.Errorf("%d tenant namespaces are missing", missing)
	}
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`tenantcore catalog migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending catalog migrations
  down                  Roll back all catalog migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version after a manual fix
  create <name> [desc]  Create the next numbered migration pair
  list                  List available migrations
  namespaces            Check that every live tenant has its schema

Flags:
  -path string          Read migrations from a directory instead of the embedded set
  -log-level string     Log level: debug, info, warn, error (default: info)

Tenant namespaces are not migrated here. They are created when a tenant is provisioned.

Environment Variables:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE`)
}
