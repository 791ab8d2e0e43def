package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/trainplan/internal/config"
	trainmcp "github.com/claude/trainplan/internal/mcp"
	"github.com/claude/trainplan/internal/planner"
	"github.com/claude/trainplan/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "trainplan server URL for remote mode (e.g. https://trainplan.tail1234.ts.net)")
	configPath := flag.String("config", "", "config file for local mode (reads the database directly)")
	trailingRest := flag.String("trailing-rest", string(planner.TrailingRestKeep), "rest after the last movelap in previews: keep or suppress (remote mode)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("trainplan-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds trainmcp.DataSource
	var opts planner.Options

	switch {
	case *serverURL != "":
		policy, err := planner.ParseTrailingRest(*trailingRest)
		if err != nil {
			log.Error("invalid -trailing-rest", "error", err)
			os.Exit(1)
		}
		opts = planner.Options{TrailingRest: policy}
		ds = trainmcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)

	case *configPath != "":
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if cfg.Database.InMemory {
			log.Error("local mode needs a database; use -server against a running in-memory server")
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		opts = cfg.Planner.Options()
		ds = db
		log.Info("local mode", "database", cfg.Database.Name)

	default:
		fmt.Fprintf(os.Stderr, "Usage: trainplan-mcp -server <URL> | -config config.yaml\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := trainmcp.New(ds, opts, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
