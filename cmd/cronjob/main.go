package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chronobank/internal/app"
	"chronobank/internal/config"
	"chronobank/internal/jobs"
	"chronobank/internal/logger"
	"chronobank/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'sweep-overdue-loans', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting ChronoBank Cronjob Runner...", "log_level", cfg.Log.Level)

	rt, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize runtime", "error", err)
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(rt.Jobs, *runOnce) {
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler, err := scheduler.NewScheduler(rt.Jobs)
	if err != nil {
		log.Fatalf("Failed to register jobs: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "sweep-overdue-loans":
		jobRunner.SweepOverdueLoans()
	case "sweep-matured-investments":
		jobRunner.SweepMaturedInvestments()
	case "relay-notifications":
		jobRunner.RelayNotifications()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - sweep-overdue-loans\n")
		fmt.Printf("  - sweep-matured-investments\n")
		fmt.Printf("  - relay-notifications\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
