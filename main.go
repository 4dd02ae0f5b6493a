// =============================================================================
// Invoice Export - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoice-export export     - Export all invoice files in the input directory
//   invoice-export validate   - Validate configuration and invoice files
//   invoice-export serve      - Serve exports over HTTP
//   invoice-export version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/                    : CLI command definitions (Cobra)
//   - internal/taks           : TAKS customs record encoder
//   - internal/export         : Exporters for every output format
//   - internal/invoiceparser  : JSON, YAML, XLSX and CSV invoice readers
//   - internal/converter      : Export pipeline and field transformations
//   - internal/server         : HTTP export endpoint
//   - pkg/utils               : File discovery, archival and run logs
//   - profiles/               : Export profiles
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/invoice-export/cmd"
)

func main() {
	cmd.Execute()
}
