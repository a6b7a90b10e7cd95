package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/skillevaluator/backend/internal/config"
)

// Thin wrapper around golang-migrate so schema changes run against the same
// DATABASE_URL the server reads.
func main() {
	var dir string
	flag.StringVar(&dir, "path", "migrations", "directory holding the SQL migration files")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return
	}

	switch args[0] {
	case "up":
		report(m.Up(), "schema is up to date")
	case "down":
		report(m.Down(), "schema rolled back")
	case "steps":
		n := argInt(args, 1, "steps requires a signed step count")
		report(m.Steps(n), fmt.Sprintf("moved %d step(s)", n))
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
	case "force":
		v := argInt(args, 1, "force requires a version argument")
		if err := m.Force(v); err != nil {
			log.Fatalf("force: %v", err)
		}
		fmt.Printf("forced version to %d\n", v)
	default:
		usage()
	}
}

func report(err error, ok string) {
	switch {
	case err == nil:
		fmt.Println(ok)
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("no change")
	default:
		log.Fatalf("migrate: %v", err)
	}
}

func argInt(args []string, i int, missing string) int {
	if len(args) <= i {
		log.Fatal(missing)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		log.Fatalf("not a number: %q", args[i])
	}
	return n
}

func usage() {
	fmt.Println("usage: migrate [-path dir] <up|down|steps <n>|version|force <version>>")
	flag.PrintDefaults()
}
