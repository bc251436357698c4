package treasury

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	"github.com/bitfsorg/shardwallet-go/network"
	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

const (
	// DustLimit is the smallest payout output the chain treasury will create.
	DustLimit = uint64(1)

	// DefaultFeeRate is the fee rate in sat/KB used when none is configured.
	DefaultFeeRate = uint64(100)
)

// Token is a fungible-token contract holding the treasury's tokens of one
// currency.
type Token interface {
	Balance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, to string, amount uint64) error
}

// AddressResolver turns a shard recipient into a payable address.
type AddressResolver interface {
	Resolve(ctx context.Context, recipient string) (*script.Address, error)
}

// ChainConfig configures a Chain treasury.
type ChainConfig struct {
	Key      *ec.PrivateKey            // treasury key; its P2PKH address holds the native funds
	Service  network.BlockchainService // node access
	Resolver AddressResolver           // nil accepts base58 addresses only
	Tokens   map[shardwallet.Currency]Token
	FeeRate  uint64 // sat/KB, 0 = DefaultFeeRate
	Mainnet  bool
}

// Chain is a treasury whose native balance is the set of P2PKH outputs
// paying to its key. The network fee of a payout is taken out of the payout
// itself, so the treasury balance drops by exactly the claimed amount.
type Chain struct {
	mu       sync.Mutex
	key      *ec.PrivateKey
	addr     *script.Address
	lock     *script.Script
	svc      network.BlockchainService
	resolver AddressResolver
	tokens   map[shardwallet.Currency]Token
	feeRate  uint64
	mainnet  bool

	// Broadcast but possibly not yet reflected by the node.
	spent   map[outpoint]struct{}
	pending map[outpoint]*network.UTXO
}

type outpoint struct {
	txid string
	vout uint32
}

// Compile-time interface check.
var _ shardwallet.Treasury = (*Chain)(nil)

// NewChain creates a chain treasury from cfg.
func NewChain(cfg ChainConfig) (*Chain, error) {
	if cfg.Key == nil {
		return nil, fmt.Errorf("%w: key", ErrNilParam)
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("%w: service", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(cfg.Key.PubKey(), cfg.Mainnet)
	if err != nil {
		return nil, fmt.Errorf("%w: treasury address: %w", ErrBuildTx, err)
	}
	lock, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: treasury lock script: %w", ErrBuildTx, err)
	}
	feeRate := cfg.FeeRate
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	tokens := make(map[shardwallet.Currency]Token, len(cfg.Tokens))
	for c, t := range cfg.Tokens {
		tokens[c] = t
	}
	return &Chain{
		key:      cfg.Key,
		addr:     addr,
		lock:     lock,
		svc:      cfg.Service,
		resolver: cfg.Resolver,
		tokens:   tokens,
		feeRate:  feeRate,
		mainnet:  cfg.Mainnet,
		spent:    make(map[outpoint]struct{}),
		pending:  make(map[outpoint]*network.UTXO),
	}, nil
}

// KeyFromWIF decodes a WIF-encoded treasury key.
func KeyFromWIF(wif string) (*ec.PrivateKey, error) {
	key, err := ec.PrivateKeyFromWif(wif)
	if err != nil {
		return nil, fmt.Errorf("treasury: decode WIF: %w", err)
	}
	return key, nil
}

// Address returns the base58 address deposits should be sent to.
func (c *Chain) Address() string {
	return c.addr.AddressString
}

// Balance returns the spendable native balance, or the token contract's
// balance for any other currency.
func (c *Chain) Balance(ctx context.Context, cur shardwallet.Currency) (uint64, error) {
	if cur != shardwallet.Native {
		tok, err := c.token(cur)
		if err != nil {
			return 0, err
		}
		return tok.Balance(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	utxos, err := c.unspent(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, u := range utxos {
		total += u.Amount
	}
	return total, nil
}

// Transfer pays amount to the recipient. For native value the payout output
// carries amount minus the fee, and the change returns to the treasury.
func (c *Chain) Transfer(ctx context.Context, cur shardwallet.Currency, to string, amount uint64) error {
	addr, err := c.resolve(ctx, to)
	if err != nil {
		return err
	}
	if cur != shardwallet.Native {
		tok, err := c.token(cur)
		if err != nil {
			return err
		}
		return tok.Transfer(ctx, addr.AddressString, amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	utxos, err := c.unspent(ctx)
	if err != nil {
		return err
	}
	inputs, total, err := selectUTXOs(utxos, amount)
	if err != nil {
		return err
	}
	fee := estimateFee(len(inputs), 2, c.feeRate)
	if amount < fee+DustLimit {
		return fmt.Errorf("%w: payout of %d sat does not cover fee of %d sat", ErrInsufficientFunds, amount, fee)
	}

	sdkTx, err := c.buildPayout(inputs, addr, amount-fee, total-amount)
	if err != nil {
		return err
	}
	txid, err := c.svc.BroadcastTx(ctx, sdkTx.Hex())
	if err != nil {
		return err
	}

	for _, u := range inputs {
		op := outpoint{u.TxID, u.Vout}
		c.spent[op] = struct{}{}
		delete(c.pending, op)
	}
	if change := total - amount; change > 0 {
		c.pending[outpoint{txid, 1}] = &network.UTXO{
			TxID:         txid,
			Vout:         1,
			Amount:       change,
			ScriptPubKey: hex.EncodeToString(c.lock.Bytes()),
			Address:      c.addr.AddressString,
		}
	}
	return nil
}

func (c *Chain) token(cur shardwallet.Currency) (Token, error) {
	tok, ok := c.tokens[cur]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, cur)
	}
	return tok, nil
}

func (c *Chain) resolve(ctx context.Context, to string) (*script.Address, error) {
	if c.resolver != nil {
		return c.resolver.Resolve(ctx, to)
	}
	return script.NewAddressFromString(to)
}

// unspent merges the node's view with local bookkeeping. Caller holds c.mu.
func (c *Chain) unspent(ctx context.Context) ([]*network.UTXO, error) {
	reported, err := c.svc.ListUnspent(ctx, c.addr.AddressString)
	if err != nil {
		return nil, err
	}

	seen := make(map[outpoint]struct{}, len(reported))
	var out []*network.UTXO
	for _, u := range reported {
		op := outpoint{u.TxID, u.Vout}
		seen[op] = struct{}{}
		delete(c.pending, op)
		if _, ok := c.spent[op]; ok {
			continue
		}
		out = append(out, u)
	}
	// Once the node stops reporting a spent output, it has seen the spend.
	for op := range c.spent {
		if _, ok := seen[op]; !ok {
			delete(c.spent, op)
		}
	}
	for _, u := range c.pending {
		out = append(out, u)
	}
	return out, nil
}

// selectUTXOs picks largest-first until the inputs cover amount.
func selectUTXOs(utxos []*network.UTXO, amount uint64) ([]*network.UTXO, uint64, error) {
	sorted := make([]*network.UTXO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	var picked []*network.UTXO
	var total uint64
	for _, u := range sorted {
		if total >= amount {
			break
		}
		picked = append(picked, u)
		total += u.Amount
	}
	if total < amount {
		return nil, 0, fmt.Errorf("%w: have %d sat, need %d", ErrInsufficientFunds, total, amount)
	}
	return picked, total, nil
}

// estimateFee returns ceil(size * rate / 1000) for a P2PKH transaction of
// the given shape.
func estimateFee(inputs, outputs int, feeRate uint64) uint64 {
	size := uint64(10 + inputs*148 + outputs*34)
	return (size*feeRate + 999) / 1000
}

func (c *Chain) buildPayout(inputs []*network.UTXO, to *script.Address, payout, change uint64) (*transaction.Transaction, error) {
	sdkTx := transaction.NewTransaction()

	for _, u := range inputs {
		txidHash, err := chainhash.NewHashFromHex(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid UTXO txid %q: %w", ErrBuildTx, u.TxID, err)
		}
		lockBytes, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid UTXO script: %w", ErrBuildTx, err)
		}
		unlocker, err := p2pkh.Unlock(c.key, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: unlocker: %w", ErrBuildTx, err)
		}
		sdkTx.AddInput(&transaction.TransactionInput{
			SourceTXID:              txidHash,
			SourceTxOutIndex:        u.Vout,
			SequenceNumber:          0xffffffff,
			UnlockingScriptTemplate: unlocker,
		})
		sdkTx.Inputs[len(sdkTx.Inputs)-1].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      u.Amount,
			LockingScript: script.NewFromBytes(lockBytes),
		})
	}

	payLock, err := p2pkh.Lock(to)
	if err != nil {
		return nil, fmt.Errorf("%w: payout lock script: %w", ErrBuildTx, err)
	}
	sdkTx.AddOutput(&transaction.TransactionOutput{
		LockingScript: payLock,
		Satoshis:      payout,
	})
	if change > 0 {
		sdkTx.AddOutput(&transaction.TransactionOutput{
			LockingScript: c.lock,
			Satoshis:      change,
		})
	}

	if err := sdkTx.Sign(); err != nil {
		return nil, fmt.Errorf("%w: sign: %w", ErrBuildTx, err)
	}
	return sdkTx, nil
}
