// Package classify decides whether an indexed asset record is a
// non-fungible token and extracts its collection membership.
//
// Indexer metadata is inconsistent across asset-program versions, so the
// heuristic is deliberately permissive: any single positive signal
// classifies the asset as an NFT, trading false positives for false
// negatives.
package classify

import (
	"strings"

	"nftgate/internal/domain"
)

// nonFungibleInterfaces is the known set of non-fungible interface tags.
var nonFungibleInterfaces = map[string]struct{}{
	"V1_NFT":          {},
	"V2_NFT":          {},
	"LEGACY_NFT":      {},
	"ProgrammableNFT": {},
	"MplCoreAsset":    {},
}

// descriptionKeywords flag NFT-like assets by description text.
var descriptionKeywords = []string{"nft", "non-fungible", "token"}

// Classify derives the is-NFT flag and collection id for one record.
func Classify(a domain.AssetRecord) domain.ClassifiedAsset {
	return domain.ClassifiedAsset{
		AssetRecord:  a,
		IsNFT:        isNonFungible(a),
		CollectionID: collectionID(a),
	}
}

// ClassifyAll classifies a full fetch result in order.
func ClassifyAll(assets []domain.AssetRecord) []domain.ClassifiedAsset {
	out := make([]domain.ClassifiedAsset, len(assets))
	for i, a := range assets {
		out[i] = Classify(a)
	}
	return out
}

// isNonFungible is a short-circuit OR over independent signals.
func isNonFungible(a domain.AssetRecord) bool {
	// Declared token standard.
	standard := strings.ToLower(a.Content.Metadata.TokenStandard)
	if standard == "nonfungible" || standard == "non-fungible" {
		return true
	}

	// Known non-fungible interface tag.
	if _, ok := nonFungibleInterfaces[a.Interface]; ok {
		return true
	}

	// Any file attachment, name or symbol. This signal alone makes
	// nearly every asset with metadata count as an NFT.
	if len(a.Content.Files) > 0 || a.Content.Metadata.Name != "" || a.Content.Metadata.Symbol != "" {
		return true
	}

	// NFT keywords in the description.
	description := strings.ToLower(a.Content.Metadata.Description)
	for _, keyword := range descriptionKeywords {
		if strings.Contains(description, keyword) {
			return true
		}
	}

	return false
}

// collectionID returns the group_value of the first grouping entry
// verbatim; the group_key is not inspected.
func collectionID(a domain.AssetRecord) string {
	if len(a.Grouping) == 0 {
		return ""
	}
	return a.Grouping[0].GroupValue
}

// MatchesCollection reports whether the asset belongs to the target
// collection. Exact string equality, case-sensitive.
func MatchesCollection(a domain.ClassifiedAsset, target string) bool {
	return a.CollectionID == target
}
