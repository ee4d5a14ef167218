package flamegraph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stackcollector/stackcollector/internal/store"
	"github.com/stackcollector/stackcollector/pkg/sampler"
)

// ErrInvalidThreshold is returned for a threshold outside [0, 1].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

// Scanner visits every key of a store in key order.
type Scanner interface {
	Scan(ctx context.Context, fn store.ScanFunc) error
}

// Request selects the records and the rarity cutoff of a query.
type Request struct {
	// Window limits the records summed per stack. The zero Window sums all.
	Window store.Window
	// Threshold is a fraction of the root value. Children whose value is
	// not strictly above Threshold * root value are pruned.
	Threshold float64
}

// Validate checks the request.
func (r Request) Validate() error {
	if math.IsNaN(r.Threshold) || r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, r.Threshold)
	}
	return nil
}

// Build scans src and returns the full, unpruned call tree of the window.
// Every stored signature contributes its windowed sum, which may be zero.
func Build(ctx context.Context, src Scanner, window store.Window) (*Node, error) {
	root := NewNode(RootName)

	err := src.Scan(ctx, func(signature, value string) error {
		root.Add(strings.Split(signature, sampler.FrameSeparator), window.Sum(value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan store: %w", err)
	}

	return root, nil
}

// Query builds the call tree of the request's window and prunes it at the
// request's threshold.
func Query(ctx context.Context, src Scanner, req Request) (Tree, error) {
	if err := req.Validate(); err != nil {
		return Tree{}, err
	}

	root, err := Build(ctx, src, req.Window)
	if err != nil {
		return Tree{}, err
	}

	return root.Serialize(req.Threshold * float64(root.Value)), nil
}
