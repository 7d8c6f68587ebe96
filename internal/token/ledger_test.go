package token

import (
	"testing"
)

func TestCreateAssetAndMint(t *testing.T) {
	bank := NewBank()

	if err := bank.CreateAsset("BASE", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bank.CreateAsset("BASE", 3); err != ErrAssetExists {
		t.Errorf("expected ErrAssetExists, got %v", err)
	}

	if err := bank.Mint("alice", "BASE", 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := bank.BalanceOf("alice", "BASE"); got != 1000 {
		t.Errorf("expected balance 1000, got %d", got)
	}

	if err := bank.Mint("alice", "NOPE", 1); err != ErrUnknownAsset {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	bank := NewBank()
	bank.CreateAsset("BASE", 3)
	bank.Mint("alice", "BASE", 500)

	if err := bank.Transfer("alice", "bob", "BASE", 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := bank.BalanceOf("alice", "BASE"); got != 300 {
		t.Errorf("expected alice balance 300, got %d", got)
	}
	if got := bank.BalanceOf("bob", "BASE"); got != 200 {
		t.Errorf("expected bob balance 200, got %d", got)
	}

	if err := bank.Transfer("alice", "bob", "BASE", 301); err != ErrInsufficientBalance {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	// A failed transfer must not move anything.
	if got := bank.BalanceOf("alice", "BASE"); got != 300 {
		t.Errorf("balance changed on failed transfer: %d", got)
	}

	if err := bank.Transfer("alice", "bob", "BASE", 0); err != nil {
		t.Errorf("zero transfer should be a no-op, got %v", err)
	}
}

func TestDecimals(t *testing.T) {
	bank := NewBank()
	bank.CreateAsset("QUOTE", 6)

	dec, err := bank.Decimals("QUOTE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec != 6 {
		t.Errorf("expected 6 decimals, got %d", dec)
	}

	if _, err := bank.Decimals("NOPE"); err != ErrUnknownAsset {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}
