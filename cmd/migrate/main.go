package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"arabia.app/internal/migrate"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if err := app().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:  "arabia-migrate",
		Usage: "Apply the arabia-api database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL DSN",
				EnvVars: []string{"ARABIA_DATABASE_DSN"},
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory with migrations/ and seeds/ (defaults to the embedded schema)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall command timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply pending migrations",
				Action: withManager(func(ctx context.Context, m *migrate.Manager) error {
					applied, err := m.Up(ctx)
					report("applied", applied, err)
					return err
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withManager(func(ctx context.Context, m *migrate.Manager) error {
					name, err := m.Down(ctx)
					if errors.Is(err, migrate.ErrNoMigrations) {
						fmt.Println("nothing to roll back")
						return nil
					}
					if err == nil {
						fmt.Println("rolled back", name)
					}
					return err
				}),
			},
			{
				Name:  "status",
				Usage: "List migrations and seeds with their state",
				Action: withManager(func(ctx context.Context, m *migrate.Manager) error {
					entries, err := m.Status(ctx)
					if err != nil {
						return err
					}
					for _, e := range entries {
						fmt.Println(e)
					}
					return nil
				}),
			},
			{
				Name:  "seed",
				Usage: "Apply new or changed seed files",
				Action: withManager(func(ctx context.Context, m *migrate.Manager) error {
					applied, err := m.Seed(ctx)
					report("seeded", applied, err)
					return err
				}),
			},
		},
	}
}

func report(verb string, names []string, err error) {
	if len(names) == 0 && err == nil {
		fmt.Println("nothing to do")
		return
	}
	for _, name := range names {
		fmt.Println(verb, name)
	}
}

func withManager(fn func(context.Context, *migrate.Manager) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dsn := c.String("dsn")
		if dsn == "" {
			return cli.Exit("missing DSN: provide --dsn or ARABIA_DATABASE_DSN", 2)
		}

		ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer cancel()

		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		var mgr *migrate.Manager
		if dir := c.String("dir"); dir != "" {
			mgr = migrate.NewManager(db, os.DirFS(dir), migrate.WithDirs("migrations", "seeds"))
		} else {
			mgr = migrate.NewManager(db, nil)
		}
		if err := fn(ctx, mgr); err != nil {
			return fmt.Errorf("migrate %s: %w", c.Command.Name, err)
		}
		return nil
	}
}
