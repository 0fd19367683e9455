// Command import_profiles loads roommate profiles from an Excel workbook. Existing profiles
// (matched by user_id) are overwritten, and with -recalculate their matches are queued for
// rescoring by the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mroshb/roommate_match/internal/config"
	"github.com/mroshb/roommate_match/internal/database"
	"github.com/mroshb/roommate_match/internal/jobs"
	"github.com/mroshb/roommate_match/internal/repositories"
	"github.com/mroshb/roommate_match/internal/scheduler"
	"github.com/mroshb/roommate_match/pkg/logger"
	"github.com/xuri/excelize/v2"
)

func main() {
	file := flag.String("file", "", "path to the .xlsx workbook")
	sheet := flag.String("sheet", "", "sheet to import (default: every sheet)")
	recalculate := flag.Bool("recalculate", false, "queue a score recalculation for each imported profile")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	f, err := excelize.OpenFile(*file)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ctx := context.Background()
	profiles := repositories.NewProfileRepository(db)

	// Enqueue only; the daemon's queue runs the jobs.
	var sched *scheduler.Scheduler
	if *recalculate {
		sched = scheduler.New(jobs.NewQueue(repositories.NewJobRepository(db), jobs.Config{}), nil)
	}

	sheets := f.GetSheetList()
	if *sheet != "" {
		sheets = []string{*sheet}
	}

	totalImported, totalSkipped := 0, 0
	for _, sheetName := range sheets {
		fmt.Printf("Importing sheet: %s\n", sheetName)
		rows, err := f.GetRows(sheetName)
		if err != nil {
			fmt.Printf("Error reading sheet %s: %v\n", sheetName, err)
			continue
		}
		if len(rows) < 2 {
			continue
		}

		cols, err := parseHeader(rows[0])
		if err != nil {
			fmt.Printf("Skipping sheet %s: %v\n", sheetName, err)
			continue
		}

		for i, row := range rows[1:] {
			rowNum := i + 2
			profile, err := parseProfileRow(cols, row)
			if err != nil {
				fmt.Printf("Invalid row %d in %s: %v\n", rowNum, sheetName, err)
				totalSkipped++
				continue
			}

			if err := profiles.UpsertProfile(ctx, profile); err != nil {
				fmt.Printf("Error saving row %d in %s: %v\n", rowNum, sheetName, err)
				totalSkipped++
				continue
			}
			totalImported++

			if sched == nil {
				continue
			}
			stored, err := profiles.GetProfileByUserID(ctx, profile.UserID)
			if err != nil {
				fmt.Printf("Error reloading row %d in %s: %v\n", rowNum, sheetName, err)
				continue
			}
			if err := sched.ScheduleRecalculation(ctx, stored.ID); err != nil {
				fmt.Printf("Error queueing recalculation for %s: %v\n", stored.ID, err)
			}
		}
	}

	fmt.Printf("Successfully imported %d profiles (%d skipped).\n", totalImported, totalSkipped)
}
