package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lambda-tuner/lambda-tuner/tuner"
	"github.com/lambda-tuner/lambda-tuner/tuner/awslambda"
)

var (
	// Persistent CLI flags shared by every subcommand
	region   string // AWS region the functions live in
	profile  string // Shared-config profile used for credentials
	logLevel string // Log verbosity level
)

// functionService is what the CLI needs from a provider: listing for
// selection and the per-function operations driven by the tuner.
type functionService interface {
	tuner.FunctionClient
	tuner.Catalog
}

// newFunctionService connects to the provider. Tests replace it with a fake.
var newFunctionService = func(ctx context.Context) (functionService, error) {
	return awslambda.New(ctx, region, profile)
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lambda-tuner",
	Short: "Find the best cost / performance memory size for AWS Lambda functions",
	Long: `lambda-tuner invokes Lambda functions at different memory sizes, measures
their billed duration and searches for the memory size that minimizes cost,
minimizes latency, or balances both. Every function is restored to its
original memory size when tuning ends.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up persistent flags
func init() {
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", "us-east-1", "AWS region your Lambda functions live in")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Shared-config profile of the AWS user to use (default credential chain when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}
