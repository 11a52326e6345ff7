package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "class-track",
	Short: "Classroom attendance tracking with AI face verification",
	Long: `Class Track is a classroom attendance system. Students enroll a set of
reference images once; during a class session the teacher points a camera at
the room and each capture is verified against the roster by an AI model,
marking students present.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
