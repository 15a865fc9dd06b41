package spv

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/palomachain/peg/disbursal"
	"github.com/palomachain/peg/pegerrors"
)

// TrackedAddresses answers whether a pkScript pays a P2SS address this
// core currently recognizes as a deposit destination (the current address
// and any archived ones, per rotation.Rotator).
type TrackedAddresses interface {
	IsTracked(pkScript []byte) bool
}

// CoinLedger is the external module that mints pegged coins on a verified
// deposit (spec.md §4.D side effects, §6 Withdrawal origin).
type CoinLedger interface {
	Mint(recipient string, amount int64) error
}

// ProcessedTxSet is the replicated set of txids already admitted as
// deposits (spec.md §3), guaranteeing at-most-once minting.
type ProcessedTxSet interface {
	Contains(txid chainhash.Hash) bool
	Add(txid chainhash.Hash)
}

// Deposit is an admitted deposit transaction (spec.md §6): the raw
// transaction bytes and the Merkle proof of its inclusion at a given
// header height.
type Deposit struct {
	Transaction []byte
	Proof       MerkleProof
}

// AdmitDeposit runs the six-step deposit validation pipeline of spec.md
// §4.D against the given chain, tracked addresses, processed-tx set and
// coin ledger. On success it mints, then inserts the txid into the
// processed-tx set, and returns the paying output as a UTXO; recording that
// UTXO is left to the caller. depositFee is subtracted from the minted
// amount (spec.md §4.D "mint(recipient, amount - deposit_fee)").
//
// All failures leave chain, addrs, processed and ledger state unchanged.
func AdmitDeposit(chain *Chain, addrs TrackedAddresses, processed ProcessedTxSet, ledger CoinLedger,
	d Deposit, depositFee int64) (*disbursal.UTXO, error) {

	header, ok := chain.At(d.Proof.Height)
	if !ok {
		return nil, pegerrors.New(pegerrors.ErrUnknownHeight, "deposit references a header height the chain does not have", nil)
	}

	tx := wire.NewMsgTx(0)
	if err := tx.Deserialize(bytes.NewReader(d.Transaction)); err != nil {
		return nil, pegerrors.New(pegerrors.ErrBadFormat, "deposit transaction does not decode", err)
	}
	txid := tx.TxHash()

	if processed.Contains(txid) {
		return nil, pegerrors.New(pegerrors.ErrAlreadyProcessed, "deposit txid has already been processed", nil)
	}

	if err := VerifyMerkleProof(txid, d.Proof, header.Header.MerkleRoot); err != nil {
		return nil, err
	}

	var (
		payingVout   = -1
		payingAmount int64
		recipient    string
	)
	for i, out := range tx.TxOut {
		if addrs.IsTracked(out.PkScript) {
			payingVout = i
			payingAmount = out.Value
			break
		}
	}
	if payingVout < 0 {
		return nil, pegerrors.New(pegerrors.ErrNotPeggedPayment, "transaction has no output paying a currently-tracked P2SS address", nil)
	}

	for _, out := range tx.TxOut {
		if !bytes.HasPrefix(out.PkScript, []byte{txscript.OP_RETURN}) {
			continue
		}
		pushes, err := txscript.PushedData(out.PkScript)
		if err != nil || len(pushes) == 0 {
			continue
		}
		if r, err := ParseCommitment(pushes[0]); err == nil {
			recipient = r
			break
		}
	}
	if recipient == "" {
		return nil, pegerrors.New(pegerrors.ErrMissingCommitment, "transaction does not commit to a sidechain recipient address", nil)
	}

	utxo := &disbursal.UTXO{
		Outpoint: wire.OutPoint{Hash: txid, Index: uint32(payingVout)},
		Amount:   payingAmount,
		PkScript: tx.TxOut[payingVout].PkScript,
	}

	mintAmount := payingAmount - depositFee
	if mintAmount < 0 {
		mintAmount = 0
	}
	if err := ledger.Mint(recipient, mintAmount); err != nil {
		return nil, pegerrors.New(pegerrors.ErrBadFormat, "coin ledger rejected the mint", err)
	}

	// Only mark the txid processed once the mint has actually succeeded, so
	// a ledger rejection leaves the deposit retryable rather than
	// permanently unprocessable.
	processed.Add(txid)

	log.Infof("admitted deposit %s vout %d: minted %d to %s", txid, payingVout, mintAmount, recipient)
	return utxo, nil
}
