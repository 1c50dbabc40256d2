package blockchain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"minimarket/internal/models"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("account not found")

// marketDiscriminator prefixes every serialized Market account.
var marketDiscriminator = accountDiscriminator("Market")

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// MarketAccount is the on-chain layout of a market, in field order.
type MarketAccount struct {
	Value        float64
	Range        uint8
	Creator      solana.PublicKey
	Feed         solana.PublicKey
	TokenA       solana.PublicKey
	TokenB       solana.PublicKey
	MarketStatus uint8
	TokenAAmount uint64
	TokenBAmount uint64
	TokenPriceA  uint64
	TokenPriceB  uint64
	TotalReserve uint64
	YesAmount    uint64
	NoAmount     uint64
	Result       bool
	Bump         uint8
	Date         int64
}

var accountStatuses = []models.MarketStatus{
	models.MarketStatusCreated,
	models.MarketStatusPrepare,
	models.MarketStatusActive,
	models.MarketStatusResolved,
}

// Status maps the enum tag to a MarketStatus
func (a *MarketAccount) Status() (models.MarketStatus, error) {
	if int(a.MarketStatus) >= len(accountStatuses) {
		return "", fmt.Errorf("unknown market status tag %d", a.MarketStatus)
	}
	return accountStatuses[a.MarketStatus], nil
}

// ApplyTo copies the mutable pool state of the account onto m.
func (a *MarketAccount) ApplyTo(m *models.Market) error {
	status, err := a.Status()
	if err != nil {
		return err
	}
	m.UpdateMarketStatus(status)
	m.TokenAAmount = a.TokenAAmount
	m.TokenBAmount = a.TokenBAmount
	m.TokenPriceA = a.TokenPriceA
	m.TokenPriceB = a.TokenPriceB
	m.TotalReserve = a.TotalReserve
	m.YesAmount = a.YesAmount
	m.NoAmount = a.NoAmount
	m.Result = a.Result
	return nil
}

// ValueDecimal returns the reference value as a decimal.
func (a *MarketAccount) ValueDecimal() decimal.Decimal {
	return decimal.NewFromFloat(a.Value)
}

// DecodeMarketAccount parses raw account data including its discriminator
func DecodeMarketAccount(data []byte) (*MarketAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("invalid market data length %d", len(data))
	}
	if !bytes.Equal(data[:8], marketDiscriminator[:]) {
		return nil, fmt.Errorf("account is not a market")
	}

	var account MarketAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &account, nil
}

// EncodeMarketAccount serializes an account the way the program stores it
func EncodeMarketAccount(account *MarketAccount) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(marketDiscriminator[:])
	if err := bin.NewBorshEncoder(&buf).Encode(account); err != nil {
		return nil, fmt.Errorf("failed to encode market: %w", err)
	}
	return buf.Bytes(), nil
}

// ChainClient reads program accounts over RPC
type ChainClient struct {
	rpcClient *rpc.Client
	programID solana.PublicKey
}

// NewChainClient creates a client for the given RPC endpoint and program
func NewChainClient(rpcURL, programID string) (*ChainClient, error) {
	programPubkey, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID: %w", err)
	}

	return &ChainClient{
		rpcClient: rpc.New(rpcURL),
		programID: programPubkey,
	}, nil
}

func (c *ChainClient) ProgramID() solana.PublicKey {
	return c.programID
}

// FetchMarket fetches and decodes a market account
func (c *ChainClient) FetchMarket(ctx context.Context, address solana.PublicKey) (*MarketAccount, error) {
	accountInfo, err := c.rpcClient.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch market account: %w", err)
	}

	if accountInfo == nil || accountInfo.Value == nil {
		return nil, ErrAccountNotFound
	}
	if !accountInfo.Value.Owner.Equals(c.programID) {
		return nil, fmt.Errorf("market account %s is owned by %s", address, accountInfo.Value.Owner)
	}

	return DecodeMarketAccount(accountInfo.Value.Data.GetBinary())
}
