package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// listCmd prints the functions available in the region
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all Lambda functions in the region",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		svc, err := newFunctionService(ctx)
		if err != nil {
			logrus.Fatalf("Unable to connect to AWS: %v", err)
		}
		if err := runList(ctx, svc, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func runList(ctx context.Context, svc functionService, w io.Writer) error {
	fns, err := svc.ListFunctions(ctx)
	if err != nil {
		return fmt.Errorf("retrieve functions: %w", err)
	}
	if len(fns) == 0 {
		return fmt.Errorf("no Lambda functions found in region %s", region)
	}
	logrus.Infof("%d function(s) found", len(fns))
	renderFunctions(w, fns)
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)
}
