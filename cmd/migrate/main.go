package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/ayurkart/storefront-backend/internal/admins"
	"github.com/ayurkart/storefront-backend/pkg/bootstrap"
	"github.com/ayurkart/storefront-backend/pkg/db"
	"github.com/ayurkart/storefront-backend/pkg/enums"
	"github.com/ayurkart/storefront-backend/pkg/logger"
	"github.com/ayurkart/storefront-backend/pkg/migrate"
)

const usage = "up|down|status|to|create|validate|grant-admin|revoke-admin"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	user    string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", usage)
	flag.StringVar(&opts.dir, "dir", migrate.SourceDir, "migration source directory for create and validate")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for to")
	flag.StringVar(&opts.user, "user", "", "user id for grant-admin and revoke-admin")
	flag.Parse()

	// offline commands never touch config or the database
	switch opts.cmd {
	case "create":
		path, err := migrate.Scaffold(opts.dir, opts.name, time.Now())
		exitOn(err, "create")
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(migrate.Validate(os.DirFS(opts.dir)), "validate")
		fmt.Println("migrations ok")
		return
	}

	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, bootstrap.Options{Service: "migrate", SkipDevMigrations: true}, nil)
	exitOn(err, "bootstrap")

	logg := rt.Logger
	ctx = logg.WithFields(ctx, map[string]any{"env": rt.Config.App.Env, "cmd": opts.cmd})
	err = run(ctx, logg, rt.DB, opts)
	rt.Close(ctx)
	if err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dbClient *db.Client, opts options) error {
	switch opts.cmd {
	case "grant-admin", "revoke-admin":
		return setAdmin(ctx, logg, dbClient, opts)
	case "up", "down", "status", "to":
	default:
		return fmt.Errorf("unknown -cmd %q, want %s", opts.cmd, usage)
	}

	pool, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	m, err := migrate.New(pool, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	switch opts.cmd {
	case "up":
		applied, err := m.Up(ctx)
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
		return err
	case "down":
		version, err := m.Down(ctx)
		if err == nil {
			logg.Info(logg.WithField(ctx, "version", version), "migration rolled back")
		}
		return err
	case "to":
		target, err := strconv.ParseInt(opts.version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version %q: expected YYYYMMDDHHMMSS", opts.version)
		}
		return m.To(ctx, target)
	default:
		rows, err := m.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tAPPLIED\tNAME")
		for _, s := range rows {
			applied := "pending"
			if s.Applied {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, applied, s.Name)
		}
		return tw.Flush()
	}
}

func setAdmin(ctx context.Context, logg *logger.Logger, dbClient *db.Client, opts options) error {
	id, err := uuid.Parse(opts.user)
	if err != nil {
		return fmt.Errorf("-user %q: %w", opts.user, err)
	}
	active := opts.cmd == "grant-admin"
	if err := admins.NewRepository(dbClient.DB()).SetRole(ctx, id, enums.UserRoleAdmin, active); err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"user_id": id.String(), "active": active}), "admin role updated")
	return nil
}

func exitOn(err error, step string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "migrate %s: %v\n", step, err)
	os.Exit(1)
}
