// Command graphdb is the CLI entrypoint: init/query/shell/version,
// dispatched the plain way (no cobra/viper) over os.Args.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wouteroostervld/graphdb"
	"github.com/wouteroostervld/graphdb/internal/config"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: graphdb [init|query|shell|version]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		handleInit()
	case "query":
		handleQuery()
	case "shell":
		handleShell()
	case "version":
		fmt.Printf("graphdb version %s\n", version)
	default:
		fmt.Println("Unknown command:", os.Args[1])
		os.Exit(1)
	}
}

func dbPathFromEnv() string {
	if p := os.Getenv("GRAPHDB_PATH"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".graphdb", "graphdb.db")
}

func loadConfig() *config.Config {
	configPath := filepath.Join(os.Getenv("HOME"), ".graphdb", "config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Debug("config not found, using defaults", "error", err)
		cfg = config.Default()
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
}

func openDB(cfg *config.Config) *graphdb.DB {
	dbPath := dbPathFromEnv()
	db, err := graphdb.Open(dbPath, graphdb.WithBusyTimeout(cfg.BusyTimeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return db
}

func handleInit() {
	dbPath := dbPathFromEnv()
	os.MkdirAll(filepath.Dir(dbPath), 0700)

	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database already exists at", dbPath)
		return
	}

	cfg := config.Default()
	setupLogging(cfg)
	db, err := graphdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("✓ Database initialized at", dbPath)
}

func handleQuery() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: graphdb query <cypher>")
		fmt.Println("Example: graphdb query \"MATCH (n:Person) RETURN n.name LIMIT 10\"")
		os.Exit(1)
	}

	cfg := loadConfig()
	setupLogging(cfg)
	db := openDB(cfg)
	defer db.Close()

	cypherQuery := os.Args[2]
	runAndPrint(db, cypherQuery)
}

func handleShell() {
	cfg := loadConfig()
	setupLogging(cfg)
	db := openDB(cfg)
	defer db.Close()

	fmt.Println("graphdb shell — enter Cypher statements, Ctrl-D to exit")
	reader := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("graphdb> ")
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		runAndPrint(db, line)
	}
}

func runAndPrint(db *graphdb.DB, cypherQuery string) {
	ctx := context.Background()
	resp, err := db.Query(ctx, cypherQuery, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	if resp.Meta.Explain {
		fmt.Printf("strategy: %s\n", resp.Meta.Strategy)
		return
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting result: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
