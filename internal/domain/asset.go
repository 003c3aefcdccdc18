package domain

// AssetRecord is one on-chain asset as returned by the DAS indexer.
// The shape mirrors the searchAssets response item; records are read-only
// once fetched.
type AssetRecord struct {
	ID        string          `json:"id"`
	Interface string          `json:"interface"`
	Content   AssetContent    `json:"content"`
	Grouping  []AssetGrouping `json:"grouping"`
}

// AssetContent holds the off-chain content section of an asset record.
type AssetContent struct {
	JSONURI  string        `json:"json_uri"`
	Files    []AssetFile   `json:"files"`
	Metadata AssetMetadata `json:"metadata"`
}

// AssetFile is a single file attachment referenced by an asset.
type AssetFile struct {
	URI  string `json:"uri"`
	Mime string `json:"mime"`
}

// AssetMetadata is the metadata section of an asset record. Fields are
// frequently empty or inconsistent across asset-program versions.
type AssetMetadata struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Description   string `json:"description"`
	TokenStandard string `json:"token_standard"`
}

// AssetGrouping is one (group_key, group_value) membership entry,
// e.g. ("collection", <collection mint>).
type AssetGrouping struct {
	GroupKey   string `json:"group_key"`
	GroupValue string `json:"group_value"`
}

// ClassifiedAsset is an AssetRecord plus derived classification. It is
// never persisted beyond a cache entry.
type ClassifiedAsset struct {
	AssetRecord

	// IsNFT is the result of the permissive multi-signal heuristic.
	IsNFT bool

	// CollectionID is the group_value of the first grouping entry,
	// empty when the asset has no grouping.
	CollectionID string
}
