package cmd

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/class-track/internal/config"
	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/store/postgres"
)

//go:embed seed.yaml
var seedYAML []byte

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo dataset into the database",
	Long: `Seed the database with a small demo school: an admin, a teacher, two
students and two classes. Refuses to overwrite a non-empty database unless
--force is given.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Bool("force", false, "Replace existing data")
}

// seedFile mirrors the embedded seed.yaml layout.
type seedFile struct {
	Users []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
		Avatar   string `yaml:"avatar"`
	} `yaml:"users"`
	Classes []struct {
		ID        string   `yaml:"id"`
		Name      string   `yaml:"name"`
		TeacherID string   `yaml:"teacher_id"`
		StartTime string   `yaml:"start_time"`
		EndTime   string   `yaml:"end_time"`
		Roster    []string `yaml:"roster"`
	} `yaml:"classes"`
}

// buildSeedSnapshot parses the embedded dataset and hashes the passwords.
func buildSeedSnapshot() (*engine.Snapshot, error) {
	var seed seedFile
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}

	snap := &engine.Snapshot{}
	for _, u := range seed.Users {
		role := engine.Role(u.Role)
		if !engine.ValidRole(role) {
			return nil, fmt.Errorf("seed user %s has unknown role %q", u.ID, u.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password for %s: %w", u.Email, err)
		}
		snap.Users = append(snap.Users, engine.User{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         role,
			Avatar:       u.Avatar,
		})
	}
	for _, c := range seed.Classes {
		snap.Classes = append(snap.Classes, engine.ClassSession{
			ID:        c.ID,
			Name:      c.Name,
			TeacherID: c.TeacherID,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Roster:    c.Roster,
		})
	}
	return snap, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	repo := postgres.NewSnapshotRepository(pool)

	existing, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("checking existing data: %w", err)
	}
	if len(existing.Users) > 0 && !mustGetBool(cmd, "force") {
		return errors.New("database already contains data, use --force to replace it")
	}

	snap, err := buildSeedSnapshot()
	if err != nil {
		return err
	}

	if err := repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("writing seed data: %w", err)
	}

	fmt.Printf("Seeded %d users and %d classes\n", len(snap.Users), len(snap.Classes))
	return nil
}
