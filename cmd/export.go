package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/class-track/internal/config"
	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/store/postgres"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance records to CSV files",
	Long: `Export writes one CSV file per class into the output directory. Each row
is one attendance record with the student resolved to name and email.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("out", "attendance-export", "Output directory")
}

// exportClass writes one class ledger as CSV.
func exportClass(snap *engine.Snapshot, class *engine.ClassSession, dir string) error {
	records := engine.RecordsByClass(snap, class.ID)

	path := filepath.Join(dir, fmt.Sprintf("%s.csv", class.ID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"class", "student_id", "student_name", "student_email", "status", "confidence", "timestamp"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, rec := range records {
		name, email := "", ""
		if u := snap.UserByID(rec.StudentID); u != nil {
			name, email = u.Name, u.Email
		}
		row := []string{
			class.Name,
			rec.StudentID,
			name,
			email,
			string(rec.Status),
			fmt.Sprintf("%.2f", rec.Confidence),
			rec.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewSnapshotRepository(pool)
	snap, err := repo.Load(context.Background())
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if len(snap.Classes) == 0 {
		fmt.Println("No classes to export")
		return nil
	}

	dir := mustGetString(cmd, "out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	bar := progressbar.NewOptions(len(snap.Classes),
		progressbar.OptionSetDescription("Exporting attendance"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("classes"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	for i := range snap.Classes {
		if err := exportClass(snap, &snap.Classes[i], dir); err != nil {
			return err
		}
		bar.Add(1)
	}
	fmt.Printf("\nExported %d classes to %s\n", len(snap.Classes), dir)
	return nil
}
