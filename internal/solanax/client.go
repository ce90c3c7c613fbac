package solanax

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client submits signed transactions and runs read-only queries against
// Solana JSON-RPC nodes. Users may bring their own endpoint; one rpc.Client
// is kept per endpoint and reused across calls.
type Client struct {
	defaultEndpoint string

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

func NewClient(defaultEndpoint string) *Client {
	return &Client{
		defaultEndpoint: defaultEndpoint,
		clients:         make(map[string]*rpc.Client),
	}
}

func (c *Client) rpcFor(endpoint string) *rpc.Client {
	if endpoint == "" {
		endpoint = c.defaultEndpoint
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[endpoint]; ok {
		return client
	}
	client := rpc.New(endpoint)
	c.clients[endpoint] = client
	return client
}

// Submit sends raw signed transaction bytes with preflight simulation
// enabled and a "processed" commitment for the acknowledgment, and returns
// the transaction signature from the RPC envelope. It never retries: a
// second send of the same signed bytes is the network's double-submission
// problem, not ours.
//
// Submission commits the operation. If ctx is cancelled after the RPC node
// accepted the transaction, the on-chain effect still happens; callers
// must not treat local cancellation as a rollback.
func (c *Client) Submit(ctx context.Context, signed []byte, endpoint string) (string, error) {
	sig, err := c.rpcFor(endpoint).SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", fmt.Errorf("rpc send: %w", err)
	}
	return sig.String(), nil
}

// Balance returns the lamport balance of pubKey at finalized commitment.
func (c *Client) Balance(ctx context.Context, pubKey string, endpoint string) (uint64, error) {
	key, err := solana.PublicKeyFromBase58(pubKey)
	if err != nil {
		return 0, fmt.Errorf("invalid public key: %w", err)
	}
	out, err := c.rpcFor(endpoint).GetBalance(ctx, key, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("rpc balance: %w", err)
	}
	return out.Value, nil
}

// LatestBlockhash fetches a recent blockhash for locally built transactions.
func (c *Client) LatestBlockhash(ctx context.Context, endpoint string) (solana.Hash, error) {
	out, err := c.rpcFor(endpoint).GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("rpc blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// BuildTransfer assembles an unsigned system-program SOL transfer paid and
// signed by from. The result goes through the same Sign/Submit path as
// aggregator-built transactions.
func BuildTransfer(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	ix := system.NewTransferInstruction(lamports, from, to).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}
	return tx, nil
}
