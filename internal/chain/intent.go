// Package chain builds transaction-intent descriptors for an external
// signer: target contract, ABI-encoded call data, value, and chain id. The
// core never signs or submits these.
package chain

import (
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lummalabs/lumma-core/internal/config"
	"github.com/lummalabs/lumma-core/internal/errors"
)

// Stable tokens on Arc carry 6 decimals.
const tokenDecimals = 1e6

const intentABIJSON = `[
	{"name":"deposit","type":"function","inputs":[{"name":"vaultId","type":"string"},{"name":"amount","type":"uint256"}]},
	{"name":"withdraw","type":"function","inputs":[{"name":"vaultId","type":"string"},{"name":"amount","type":"uint256"}]},
	{"name":"swapExactIn","type":"function","inputs":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"minOut","type":"uint256"}]},
	{"name":"claimMilestone","type":"function","inputs":[{"name":"account","type":"address"},{"name":"tier","type":"string"}]}
]`

var intentABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(intentABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Intent is one transaction for the external signer to submit.
type Intent struct {
	ChainID int64          `json:"chainId"`
	To      common.Address `json:"to"`
	Data    hexutil.Bytes  `json:"data"`
	Value   *hexutil.Big   `json:"value"`
}

type Builder struct {
	chainID   int64
	contracts config.Contracts
}

func NewBuilder(chainID int64, contracts config.Contracts) *Builder {
	return &Builder{chainID: chainID, contracts: contracts}
}

func (b *Builder) intent(to string, data []byte) *Intent {
	return &Intent{
		ChainID: b.chainID,
		To:      common.HexToAddress(to),
		Data:    data,
		Value:   (*hexutil.Big)(big.NewInt(0)),
	}
}

// toUnits converts a 2-dp USD amount to 6-decimal token units.
func toUnits(amount float64) *big.Int {
	return big.NewInt(int64(math.Round(amount * tokenDecimals)))
}

// DepositIntent targets the vault manager's deposit call.
func (b *Builder) DepositIntent(vaultID string, amountUsd float64) (*Intent, error) {
	data, err := intentABI.Pack("deposit", vaultID, toUnits(amountUsd))
	if err != nil {
		return nil, &errors.StorageError{Operation: "encode deposit intent", Err: err}
	}
	return b.intent(b.contracts.VaultManager, data), nil
}

// WithdrawIntent targets the vault manager's withdraw call.
func (b *Builder) WithdrawIntent(vaultID string, amountUsd float64) (*Intent, error) {
	data, err := intentABI.Pack("withdraw", vaultID, toUnits(amountUsd))
	if err != nil {
		return nil, &errors.StorageError{Operation: "encode withdraw intent", Err: err}
	}
	return b.intent(b.contracts.VaultManager, data), nil
}

// SwapIntent targets the StableFX router with the quoted amounts; minOut is
// the out amount reduced by slippageBps.
func (b *Builder) SwapIntent(fromAsset, toAsset string, amountIn, outAmount float64, slippageBps int) (*Intent, error) {
	minOut := outAmount * (1 - float64(slippageBps)/10000)
	data, err := intentABI.Pack("swapExactIn",
		b.tokenAddress(fromAsset), b.tokenAddress(toAsset), toUnits(amountIn), toUnits(minOut))
	if err != nil {
		return nil, &errors.StorageError{Operation: "encode swap intent", Err: err}
	}
	return b.intent(b.contracts.StableFxRouter, data), nil
}

// MintIntent targets the milestone NFT contract's claim call.
func (b *Builder) MintIntent(walletAddress, tier string) (*Intent, error) {
	data, err := intentABI.Pack("claimMilestone", common.HexToAddress(walletAddress), tier)
	if err != nil {
		return nil, &errors.StorageError{Operation: "encode mint intent", Err: err}
	}
	return b.intent(b.contracts.MilestoneNft, data), nil
}

func (b *Builder) tokenAddress(asset string) common.Address {
	switch asset {
	case "EURC":
		return common.HexToAddress(b.contracts.EURC)
	default:
		return common.HexToAddress(b.contracts.USDC)
	}
}
