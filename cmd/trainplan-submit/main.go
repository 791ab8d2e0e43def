package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/claude/trainplan/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "trainplan server URL (e.g. https://trainplan.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("TRAINPLAN_AUTH_API_KEY"), "API key for mutating endpoints")
	planPath := flag.String("plan", "", "path to YAML plan file")
	stateDir := flag.String("state-dir", "", "directory of the submission ledger (default ~/.trainplan-submit)")
	dryRun := flag.Bool("dry-run", false, "parse the plan and list what would be sent")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("trainplan-submit", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *planPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: trainplan-submit -server <URL> -api-key <key> -plan plan.yaml [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if !*dryRun && (*serverURL == "" || *apiKey == "") {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}

	// Strip trailing slash from server URL
	*serverURL = strings.TrimRight(*serverURL, "/")

	plan, err := upload.LoadPlan(*planPath)
	if err != nil {
		log.Error("failed to load plan", "path", *planPath, "error", err)
		os.Exit(1)
	}
	log.Info("plan loaded", "days", len(plan.Days), "moveframes", plan.Moveframes())

	// Open state database
	if *stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*stateDir = filepath.Join(homeDir, ".trainplan-submit")
	}
	state, err := upload.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Create client (nil-safe in dry-run mode)
	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(*serverURL, *apiKey)
	} else {
		log.Info("DRY RUN mode: plan is parsed but nothing is sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader := upload.New(client, state, *dryRun, log)
	stats, err := uploader.Run(ctx, plan)
	printStats(stats)
	if err != nil {
		log.Error("submission failed", "error", err)
		os.Exit(1)
	}
	if stats.Rejected > 0 {
		os.Exit(2)
	}
	log.Info("submission complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Submission Summary ===")
	fmt.Printf("  Days:        %d\n", stats.Days)
	fmt.Printf("  Workouts:    %d\n", stats.Workouts)
	fmt.Printf("  Moveframes:  %d\n", stats.Moveframes)
	fmt.Printf("  Submitted:   %d\n", stats.Submitted)
	fmt.Printf("  Replayed:    %d (already on server)\n", stats.Replayed)
	fmt.Printf("  Skipped:     %d (in local ledger)\n", stats.Skipped)
	fmt.Printf("  Rejected:    %d\n", stats.Rejected)

	if len(stats.Rejections) > 0 {
		fmt.Printf("\n  Rejected moveframes:\n")
		for _, r := range stats.Rejections {
			fmt.Printf("    - %s\n", r)
		}
	}
	fmt.Println()
}
