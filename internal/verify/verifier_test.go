package verify

import (
	"context"
	"testing"

	"nftgate/internal/das"
	"nftgate/internal/domain"
)

func newVerifier(fetcher das.AssetFetcher, opts ...VerifierOption) *Verifier {
	return NewVerifier(NewCache(fetcher), opts...)
}

func TestVerifier_EmptyWallet(t *testing.T) {
	v := newVerifier(&countingFetcher{})

	has, count, err := v.HasRequiredNFT(context.Background(), "W0", "")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if has || count != 0 {
		t.Errorf("expected (false, 0), got (%v, %d)", has, count)
	}
}

func TestVerifier_UngroupedAssets(t *testing.T) {
	// W1 has 3 assets, none with a collection grouping.
	fetcher := &countingFetcher{assets: []domain.AssetRecord{
		nftRecord("a1", ""), nftRecord("a2", ""), nftRecord("a3", ""),
	}}
	v := newVerifier(fetcher)
	ctx := context.Background()

	has, count, err := v.HasRequiredNFT(ctx, "W1", "")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if !has || count != 3 {
		t.Errorf("unfiltered: expected (true, 3), got (%v, %d)", has, count)
	}

	has, count, err = v.HasRequiredNFT(ctx, "W1", "C1")
	if err != nil {
		t.Fatalf("HasRequiredNFT with collection: %v", err)
	}
	if has || count != 0 {
		t.Errorf("collection filter: expected (false, 0), got (%v, %d)", has, count)
	}
}

func TestVerifier_CollectionMember(t *testing.T) {
	// W2 has 1 asset grouped under collection C1.
	fetcher := &countingFetcher{assets: []domain.AssetRecord{nftRecord("a1", "C1")}}
	v := newVerifier(fetcher)
	ctx := context.Background()

	has, count, err := v.HasRequiredNFT(ctx, "W2", "C1")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if !has || count != 1 {
		t.Errorf("C1: expected (true, 1), got (%v, %d)", has, count)
	}

	has, count, err = v.HasRequiredNFT(ctx, "W2", "C2")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if has || count != 0 {
		t.Errorf("C2: expected (false, 0), got (%v, %d)", has, count)
	}
}

func TestVerifier_PartialCollectionOverlap(t *testing.T) {
	fetcher := &countingFetcher{assets: []domain.AssetRecord{
		nftRecord("a1", "C1"), nftRecord("a2", "C1"), nftRecord("a3", "C2"),
		nftRecord("a4", ""), nftRecord("a5", "C1"),
	}}
	v := newVerifier(fetcher)

	has, count, err := v.HasRequiredNFT(context.Background(), "W3", "C1")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if !has || count != 3 {
		t.Errorf("expected (true, 3), got (%v, %d)", has, count)
	}
}

func TestVerifier_TransportFailureDenies(t *testing.T) {
	fetcher := &countingFetcher{err: &das.TransportError{StatusCode: 503, Cause: "unavailable"}}

	var notified error
	v := newVerifier(fetcher, WithTransportFailureHook(func(err error) { notified = err }))

	has, count, err := v.HasRequiredNFT(context.Background(), "W1", "")
	if err == nil {
		t.Fatal("expected transport error to surface")
	}
	if has || count != 0 {
		t.Errorf("expected conservative (false, 0), got (%v, %d)", has, count)
	}
	if notified == nil {
		t.Error("expected operator notification hook to fire")
	}
}

func TestVerifier_MinRequired(t *testing.T) {
	fetcher := &countingFetcher{assets: []domain.AssetRecord{
		nftRecord("a1", ""), nftRecord("a2", ""),
	}}
	v := newVerifier(fetcher, WithMinRequired(3))

	has, count, err := v.HasRequiredNFT(context.Background(), "W1", "")
	if err != nil {
		t.Fatalf("HasRequiredNFT: %v", err)
	}
	if has {
		t.Error("2 NFTs passed a threshold of 3")
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}
