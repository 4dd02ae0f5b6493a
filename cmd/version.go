// =============================================================================
// Invoice Export - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   invoice-export version
//
// OUTPUT:
//   Invoice Export
//   Version:    1.0.0
//   Build Date: 2025-02-20
//   Go Version: go1.24.11
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-export/internal/export"
)

// Build information, set with ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/invoice-export/cmd.Version=1.0.0' \
//     -X 'github.com/ginjaninja78/invoice-export/cmd.BuildDate=2025-02-20'"
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, Go runtime version and export formats.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Invoice Export")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("Formats:    %v\n", export.Formats())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
