package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type RootOptions struct {
	Format string // "json" | "text"

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "acceptance",
		Short: "Acceptance checks for the analytics pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.MinioEndpoint, "minio-endpoint", envOr("MINIO_ENDPOINT", "localhost:9000"), "S3 compatible endpoint for s3:// roots")
	cmd.PersistentFlags().StringVar(&opts.MinioAccessKey, "minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "access key")
	cmd.PersistentFlags().StringVar(&opts.MinioSecretKey, "minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "secret key")
	cmd.PersistentFlags().BoolVar(&opts.MinioUseSSL, "minio-ssl", os.Getenv("MINIO_USE_SSL") == "true", "use TLS for the endpoint")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLayoutCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
