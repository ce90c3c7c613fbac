package solanax

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// tokenAccountAmountOffset is where the u64 amount sits in an SPL token
// account's fixed layout (after mint and owner, 32 bytes each).
const tokenAccountAmountOffset = 64

// TokenBalance returns the raw token amount owner holds for mint, summed
// across the owner's token accounts. An owner with no account for the
// mint reads as zero, not as an error.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string, endpoint string) (uint64, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner key: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint: %w", err)
	}

	out, err := c.rpcFor(endpoint).GetTokenAccountsByOwner(ctx, ownerKey,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return 0, fmt.Errorf("rpc token accounts: %w", err)
	}

	var total uint64
	for _, acc := range out.Value {
		data := acc.Account.Data.GetBinary()
		if len(data) >= tokenAccountAmountOffset+8 {
			total += binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8])
		}
	}
	return total, nil
}

// BuildTokenTransfer assembles an unsigned SPL token transfer between the
// associated token accounts of from and to, paid and signed by from. The
// recipient must already hold an account for the mint; a transfer to a
// missing account fails in preflight rather than stranding funds.
func BuildTokenTransfer(from, to, mint solana.PublicKey, amount uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	source, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return nil, fmt.Errorf("derive source account: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return nil, fmt.Errorf("derive destination account: %w", err)
	}

	ix := token.NewTransferInstruction(amount, source, dest, from, nil).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build token transfer: %w", err)
	}
	return tx, nil
}
