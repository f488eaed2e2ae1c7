// Package sheets exports the contribution history to a spreadsheet.
package sheets

import (
	"context"

	"saveup/internal/core"
)

// Ports for outbound adapters.
type (
	// ContributionWriter appends rows in the given order.
	ContributionWriter interface {
		AppendContributions(ctx context.Context, cs []core.Contribution) (rowRef string, err error)
	}

	// ContributionLister returns the contributions already present.
	ContributionLister interface {
		ListContributions(ctx context.Context) ([]core.Contribution, error)
	}

	ContributionStore interface {
		ContributionWriter
		ContributionLister
	}
)
