package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the exported report with rows.
	ReportWriter interface {
		WriteReport(ctx context.Context, rows [][]string) error
	}

	// ReportReader returns the rows last written.
	ReportReader interface {
		ReadReport(ctx context.Context) ([][]string, error)
	}
)
