package cmd

import (
	"fmt"
	"log"

	"EchoFM/config"
	"EchoFM/storage"

	"github.com/spf13/cobra"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Test the MinIO mirror",
	Long:  `Connect to the configured MinIO endpoint and run a write/read/delete check against the mirror bucket.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if !cfg.MinioEnabled {
			log.Fatal("MinIO mirroring is disabled; set MINIO_ENABLED=true first")
		}
		fmt.Printf("MinIO: %s, bucket %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}
		fmt.Println("Connected.")

		if err := storage.TestMinio(cfg); err != nil {
			log.Fatalf("MinIO check failed: %v", err)
		}
		fmt.Println("Write/read/delete check passed.")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
