package blockchain

import (
	"fmt"

	"minimarket/internal/models"

	"github.com/gagliardetto/solana-go"
)

// ValidateMarketID checks that a market id can be used as a derivation seed.
func ValidateMarketID(marketID string) error {
	if len(marketID) == 0 || len(marketID) > solana.MaxSeedLength {
		return fmt.Errorf("market id must be 1..%d bytes, got %d", solana.MaxSeedLength, len(marketID))
	}
	return nil
}

// FindMarketAddress derives the PDA for a market account and its bump
func FindMarketAddress(programID solana.PublicKey, marketID string) (solana.PublicKey, uint8, error) {
	if err := ValidateMarketID(marketID); err != nil {
		return solana.PublicKey{}, 0, err
	}

	seeds := [][]byte{
		[]byte(models.MarketSeed),
		[]byte(marketID),
	}

	pda, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive market PDA: %w", err)
	}
	return pda, bump, nil
}

// FindMintAddresses derives the YES and NO token mints of a market
func FindMintAddresses(programID, market solana.PublicKey) (solana.PublicKey, solana.PublicKey, error) {
	mintA, _, err := solana.FindProgramAddress([][]byte{[]byte(models.MintSeedA), market.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive mint A PDA: %w", err)
	}
	mintB, _, err := solana.FindProgramAddress([][]byte{[]byte(models.MintSeedB), market.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive mint B PDA: %w", err)
	}
	return mintA, mintB, nil
}

// MarketAuthority rebuilds the market address from its signer seeds. Only the
// holder of the market id and bump can produce it.
func MarketAuthority(programID solana.PublicKey, marketID string, bump uint8) (solana.PublicKey, error) {
	seeds := models.GetSigner(bump, []byte(marketID))
	addr, err := solana.CreateProgramAddress(seeds[:], programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create market authority: %w", err)
	}
	return addr, nil
}

// VerifyMarketAuthority checks that a stored market's signer seeds produce its
// recorded address.
func VerifyMarketAuthority(programID solana.PublicKey, market *models.Market) error {
	addr, err := MarketAuthority(programID, market.MarketID, market.Bump)
	if err != nil {
		return err
	}
	if addr.String() != market.Address {
		return fmt.Errorf("market %s: signer derives %s, stored address is %s", market.MarketID, addr, market.Address)
	}
	return nil
}
