package verify

import (
	"context"
	"log/slog"
)

// DefaultMinRequired is the ownership threshold. A configurable minimum
// above one is supported but the product default matches the original
// single-NFT gate.
const DefaultMinRequired = 1

// Verifier makes the has-required-NFT decision for a wallet.
type Verifier struct {
	cache       *Cache
	minRequired int
	logger      *slog.Logger

	// onTransportFailure is invoked when the indexer is unreachable, so
	// an operator is flagged instead of the failure being retried
	// silently. Optional.
	onTransportFailure func(err error)
}

// VerifierOption configures Verifier.
type VerifierOption func(*Verifier)

// WithMinRequired sets the ownership threshold.
func WithMinRequired(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.minRequired = n
		}
	}
}

// WithTransportFailureHook registers an operator notification callback.
func WithTransportFailureHook(fn func(error)) VerifierOption {
	return func(v *Verifier) {
		v.onTransportFailure = fn
	}
}

// WithLogger sets the verifier logger.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates an ownership verifier over the given cache.
func NewVerifier(cache *Cache, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		cache:       cache,
		minRequired: DefaultMinRequired,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HasRequiredNFT reports whether the wallet holds at least the required
// number of NFTs, narrowed to the collection when one is given, along
// with the count found.
//
// A transport failure denies access conservatively: the decision is
// (false, 0) and the error is returned so the HTTP surface can answer
// non-200, while callers that ignore it still fail closed.
func (v *Verifier) HasRequiredNFT(ctx context.Context, wallet, collection string) (bool, int, error) {
	assets, err := v.cache.GetOrFetch(ctx, wallet, collection)
	if err != nil {
		v.logger.Error("asset fetch failed, denying verification",
			"wallet", wallet, "collection", collection, "error", err)
		if v.onTransportFailure != nil {
			v.onTransportFailure(err)
		}
		return false, 0, err
	}

	count := len(assets)
	return count >= v.minRequired, count, nil
}
