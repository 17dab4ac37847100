// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/law-makers/shelf/internal/app"
	"github.com/law-makers/shelf/internal/config"
	"github.com/law-makers/shelf/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Harvest book metadata from online bookstores",
	Long: `Shelf drives a real browser through a bookstore catalogue and exports
ISBNs, cover images and product links to CSV, JSON, Markdown or Postgres.

Use "product" for a single book page and "search" to follow every product
linked from a search-results page.`,
	Version:           "0.1.0",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
}

// Execute runs the command line under ctx and returns the process exit code.
// The application is created lazily (help and version never start it) and
// closed once the command returns, whether it failed or not.
func Execute(ctx context.Context) int {
	cmd, err := rootCmd.ExecuteContextC(ctx)

	if a := GetAppFromCmd(cmd); a != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.FetchTimeout)
		_ = a.Close(closeCtx)
		cancel()
		SetApp(cmd, nil)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Error("Error:"), err)
		return 1
	}
	return 0
}

func initApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	// Subcommands keep the context of an earlier run; start from this run's.
	cmd.SetContext(cmd.Root().Context())

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	SetApp(cmd, a)
	return nil
}

func init() {
	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for shelf")
	rootCmd.Flags().Bool("version", false, "Version for shelf")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
}
