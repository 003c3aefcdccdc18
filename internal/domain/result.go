package domain

import "time"

// VerificationResult is the outcome of an ownership check for one user,
// produced by the verifier process and consumed by the group-admin
// process. The JSON shape is the cross-process webhook payload.
type VerificationResult struct {
	UserID        int64  `json:"tg_id"`
	Username      string `json:"username,omitempty"`
	WalletAddress string `json:"wallet_address"`
	HasNFT        bool   `json:"has_nft"`
	NFTCount      int    `json:"nft_count"`

	// ReceivedAt is stamped by the relay on arrival, not transmitted.
	ReceivedAt time.Time `json:"-"`
}
