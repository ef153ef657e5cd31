package diferenco

import "context"

// MinimalDiff: Myers: An O(ND) Difference Algorithm and Its Variations
func MinimalDiff[E comparable](ctx context.Context, L1 []E, L2 []E) ([]Change, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return MyersDiff(L1, L2), nil
}
