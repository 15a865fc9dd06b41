// Package peg wires the custody and signing protocol's components (§4.A–G)
// into a single replicated state machine: signatory-set selection and
// script assembly on validator/key-registry changes (rotation), SPV header
// and deposit admission, the pending-withdrawal queue, disbursal
// construction and signature collection.
//
// Every exported Handle* method is a pure, deterministic transition over
// State given its arguments — the shape the teacher's own transaction
// handlers take, generalized from a single wallet's UTXO set to the
// sidechain-wide replicated custody state of this protocol.
package peg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/palomachain/peg/disbursal"
	"github.com/palomachain/peg/internal/pegcfg"
	"github.com/palomachain/peg/internal/pegdb"
	"github.com/palomachain/peg/keyreg"
	"github.com/palomachain/peg/pegerrors"
	"github.com/palomachain/peg/rotation"
	"github.com/palomachain/peg/script"
	"github.com/palomachain/peg/signatory"
	"github.com/palomachain/peg/signing"
	"github.com/palomachain/peg/spv"
)

// CoinLedger is the external sidechain module that holds pegged balances.
// It is a black box with mint and onOutput hooks (spec.md §6); State calls
// Mint on a verified deposit.
type CoinLedger interface {
	Mint(recipient string, amount int64) error
}

// SigningTx is the in-progress disbursal state (spec.md §3): the inputs
// and outputs a disbursal.Build call produced, the P2SS address that owns
// them, and the signing.Coordinator collecting signatures over the
// resulting unsigned transaction.
type SigningTx struct {
	OwningAddress string
	Inputs        []disbursal.UTXO
	Outputs       []disbursal.Output
	Coordinator   *signing.Coordinator
}

// State is the full replicated custody and signing state: the header
// chain, the P2SS rotation history, the signatory-key registry, the UTXO
// set and processed-tx set (persisted in db), the current in-flight
// SigningTx (if any) and the most recently finalized signed transaction.
type State struct {
	cfg pegcfg.Config
	db  *pegdb.DB

	chain    *spv.Chain
	rotator  *rotation.Rotator
	registry *keyreg.Registry
	ledger   CoinLedger

	validators       []signatory.Validator
	currentSelection signatory.Set

	signingTx *SigningTx
	signedTx  *wire.MsgTx

	pendingOutputs []disbursal.Output
}

// New constructs a State seeded with genesis at height 0, backed by db for
// persistence and ledger for mint side effects.
func New(cfg pegcfg.Config, db *pegdb.DB, genesis wire.BlockHeader, ledger CoinLedger) (*State, error) {
	params, err := script.ChainParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	return &State{
		cfg:      cfg,
		db:       db,
		chain:    spv.NewChain(genesis, 0, params, cfg),
		rotator:  rotation.New(cfg),
		registry: keyreg.New(),
		ledger:   ledger,
	}, nil
}

// HandleHeaders admits a contiguous run of Bitcoin headers extending the
// chain at fromHeight (spec.md §6 Headers transaction).
func (s *State) HandleHeaders(headers []wire.BlockHeader, fromHeight uint32) error {
	if err := s.chain.ExtendHeaders(headers, fromHeight); err != nil {
		return err
	}
	log.Infof("admitted %d headers, tip now %d", len(headers), s.chain.Tip())
	return nil
}

// HandleDeposit admits a raw Bitcoin transaction and its inclusion proof
// (spec.md §4.D, §6 Deposit transaction). The proof's header must have
// accumulated at least cfg.MinConfirmations confirmations at the current
// chain tip before the deposit is considered settled enough to admit.
func (s *State) HandleDeposit(rawTx []byte, proof spv.MerkleProof) error {
	tip := s.chain.Tip()
	if tip < proof.Height || tip-proof.Height+1 < s.cfg.MinConfirmations {
		return pegerrors.New(pegerrors.ErrInsufficientConfirmations,
			"deposit's header has not yet reached the minimum confirmation depth", nil)
	}

	utxo, err := spv.AdmitDeposit(s.chain, s.rotator, processedTxAdapter{s.db}, s.ledger,
		spv.Deposit{Transaction: rawTx, Proof: proof}, s.cfg.DepositFee)
	if err != nil {
		return err
	}
	key := pegdb.OutpointKey(utxo.Outpoint.Hash, utxo.Outpoint.Index)
	encoded := encodeUTXO(*utxo)
	if err := s.db.PutUTXO(key, encoded); err != nil {
		return pegerrors.New(pegerrors.ErrBadFormat, "failed to persist deposit UTXO", err)
	}
	return nil
}

// HandleSignatoryKey admits a validator's secp256k1 key commitment
// authenticated by their consensus key (spec.md §4.C, §6 SignatoryKey
// transaction), then re-runs rotation since the committed-key registry
// changed.
//
// signatory_index is validated against the selection the current
// validator map produces on its own (s.currentSelection), not against
// whatever P2SS address happens to be published: a script cannot be
// built, and therefore no address published, until every selected
// signatory has committed a key, so gating commitment itself on a
// published address would make the very first commitment impossible.
func (s *State) HandleSignatoryKey(c keyreg.Commitment) error {
	if _, err := s.registry.Commit(s.currentSelection, c, s.keyInFlight); err != nil {
		return err
	}
	_, err := s.rotate()
	if pe, ok := err.(pegerrors.PegError); ok && pe.Code == pegerrors.ErrEmptySignatorySet {
		// Not every selected signatory has committed a key yet, so there is
		// no address to publish; the commitment itself stands.
		return nil
	}
	return err
}

// keyInFlight reports whether a consensus key has an outstanding signature
// submitted on the current live SigningTx, per DESIGN.md's Open Question 2
// resolution (forbid mid-flight key re-commitment).
func (s *State) keyInFlight(key signatory.ConsensusKey) bool {
	if s.signingTx == nil || s.signingTx.Coordinator == nil {
		return false
	}
	idx, ok := s.rotator.Current().Set.IndexOf(key)
	if !ok {
		return false
	}
	return s.signingTx.Coordinator.HasSubmitted(idx)
}

// SetValidators replaces the validator map (delivered by the consensus
// layer at each block, spec.md §3), recomputes the selection key
// commitments validate against, and re-runs rotation.
func (s *State) SetValidators(validators []signatory.Validator) error {
	s.validators = validators
	s.currentSelection = signatory.NewSet(signatory.Select(validators, s.cfg.MaxSignatories))
	_, err := s.rotate()
	if err != nil && err.(pegerrors.PegError).Code == pegerrors.ErrEmptySignatorySet {
		// No current address yet; not a fatal condition (spec.md §7).
		return nil
	}
	return err
}

// rotate recomputes the signatory set and P2SS address from the current
// validator map and key registry (spec.md §4.G), publishing a new current
// address whenever it differs from the prior one.
func (s *State) rotate() (rotation.Snapshot, error) {
	before := s.rotator.Current().Address
	snap, err := s.rotator.Rotate(s.validators, s.registry)
	if err != nil {
		return rotation.Snapshot{}, err
	}
	if before == nil || before.EncodeAddress() != snap.Address.EncodeAddress() {
		log.Infof("P2SS address rotated to %s", snap.Address.EncodeAddress())
	}
	return snap, nil
}

// HandleWithdrawal enqueues a burn-triggered withdrawal (spec.md §6
// Withdrawal transaction, routed from the coin ledger) into the pending
// output queue that seeds the next SigningTx.
func (s *State) HandleWithdrawal(pkScript []byte, amount int64) error {
	s.pendingOutputs = append(s.pendingOutputs, disbursal.Output{PkScript: pkScript, Amount: amount})
	if s.signingTx == nil {
		if err := s.buildSigningTx(); err != nil {
			if s.signingTx == nil {
				// The rebuild failed: reject the withdrawal that triggered it.
				s.pendingOutputs = s.pendingOutputs[:len(s.pendingOutputs)-1]
			}
			return err
		}
	}
	return nil
}

// buildSigningTx drains the pending output queue and every currently
// spendable UTXO at the current P2SS address into a new disbursal (spec.md
// §4.E). Determinism note: bbolt iterates keys in ascending sorted order,
// so the resulting input ordering is identical on every replica applying
// the same state.
func (s *State) buildSigningTx() error {
	if len(s.pendingOutputs) == 0 {
		return nil
	}
	current := s.rotator.Current()
	if current.Address == nil {
		return pegerrors.New(pegerrors.ErrEmptySignatorySet, "no current P2SS address to disburse from", nil)
	}

	var inputs []disbursal.UTXO
	err := s.db.ForEachUTXO(func(_, v []byte) error {
		u, decodeErr := decodeUTXO(v)
		if decodeErr != nil {
			return decodeErr
		}
		if bytes.Equal(u.PkScript, current.PkScript) {
			inputs = append(inputs, u)
		}
		return nil
	})
	if err != nil {
		return pegerrors.New(pegerrors.ErrBadFormat, "failed to enumerate UTXOs", err)
	}
	if len(inputs) == 0 {
		return pegerrors.New(pegerrors.ErrInsufficientFunds, "no UTXOs available at the current P2SS address", nil)
	}

	req := disbursal.Request{
		Inputs:            inputs,
		Outputs:           s.pendingOutputs,
		ChangePkScript:    current.PkScript,
		WitnessScriptSize: len(current.WitnessScript),
		NumSignatories:    current.Set.Len(),
		MinRelayFee:       s.cfg.MinRelayFee,
	}
	result, err := disbursal.Build(req)
	if err != nil {
		return err
	}

	signingInputs := make([]signing.Input, len(inputs))
	for i, in := range inputs {
		signingInputs[i] = signing.Input{Amount: in.Amount, WitnessScript: current.WitnessScript}
	}
	coordinator := signing.NewCoordinator(result.Tx, signingInputs, current.Signatories, current.Threshold)

	s.signingTx = &SigningTx{
		OwningAddress: current.Address.EncodeAddress(),
		Inputs:        inputs,
		Outputs:       req.Outputs,
		Coordinator:   coordinator,
	}
	s.pendingOutputs = nil

	for _, in := range inputs {
		if err := s.db.DeleteUTXO(pegdb.OutpointKey(in.Outpoint.Hash, in.Outpoint.Index)); err != nil {
			return pegerrors.New(pegerrors.ErrBadFormat, "failed to remove spent UTXO", err)
		}
	}
	log.Infof("built SigningTx over %d inputs / %d outputs owned by %s", len(inputs), len(req.Outputs), s.signingTx.OwningAddress)
	return nil
}

// HandleSignature admits a signatory's per-input DER signatures against
// the live SigningTx (spec.md §4.F, §6 Signature transaction). Once the
// cumulative voting power of submitting signatories reaches the
// signatory set's threshold, the transaction finalizes into signed_tx.
func (s *State) HandleSignature(signatoryIndex int, signatures [][]byte) error {
	if s.signingTx == nil || s.signingTx.Coordinator == nil {
		return pegerrors.New(pegerrors.ErrBadFormat, "no SigningTx is currently pending signatures", nil)
	}
	if err := s.signingTx.Coordinator.Submit(signatoryIndex, signatures); err != nil {
		return err
	}
	if s.signingTx.Coordinator.Finalized() {
		s.signedTx = s.signingTx.Coordinator.FinalTx()
		s.signingTx = nil
		log.Infof("SigningTx finalized")
	}
	return nil
}

// CurrentP2SSAddress is the current P2SS address query (spec.md §6).
func (s *State) CurrentP2SSAddress() string {
	current := s.rotator.Current()
	if current.Address == nil {
		return ""
	}
	return current.Address.EncodeAddress()
}

// SignatorySet returns the signatory-set snapshot published under address,
// whether current or archived (spec.md §6 signatory_sets[address]).
func (s *State) SignatorySet(address string) (rotation.Snapshot, bool) {
	return s.rotator.ArchivedAt(address)
}

// ChainTip is the chain query (spec.md §6 chain).
func (s *State) ChainTip() uint32 {
	return s.chain.Tip()
}

// SignedTx returns the most recently finalized disbursal transaction, if
// any.
func (s *State) SignedTx() *wire.MsgTx {
	return s.signedTx
}

// ProcessedTxs reports whether txid has already been admitted as a
// deposit (spec.md §6 processed_txs).
func (s *State) ProcessedTxs(txid chainhash.Hash) bool {
	return s.db.ContainsProcessedTx(txid)
}

func encodeUTXO(u disbursal.UTXO) []byte {
	var buf bytes.Buffer
	buf.Write(u.Outpoint.Hash[:])
	writeUint32(&buf, u.Outpoint.Index)
	writeInt64(&buf, u.Amount)
	writeUint32(&buf, uint32(len(u.PkScript)))
	buf.Write(u.PkScript)
	return buf.Bytes()
}

// processedTxAdapter satisfies spv.ProcessedTxSet over pegdb.DB's
// ProcessedTx bucket, whose methods are named for the bucket they touch
// rather than after a single generic set interface, since DB serves
// several unrelated buckets.
type processedTxAdapter struct{ db *pegdb.DB }

func (p processedTxAdapter) Contains(txid chainhash.Hash) bool { return p.db.ContainsProcessedTx(txid) }
func (p processedTxAdapter) Add(txid chainhash.Hash)           { p.db.AddProcessedTx(txid) }

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readUint32(data []byte) uint32 {
	return binary.BigEndian.Uint32(data)
}

func readInt64(data []byte) int64 {
	return int64(binary.BigEndian.Uint64(data))
}

func decodeUTXO(data []byte) (disbursal.UTXO, error) {
	const fixedLen = chainhash.HashSize + 4 + 8 + 4
	if len(data) < fixedLen {
		return disbursal.UTXO{}, fmt.Errorf("peg: encoded UTXO too short")
	}
	var u disbursal.UTXO
	copy(u.Outpoint.Hash[:], data[:chainhash.HashSize])
	off := chainhash.HashSize
	u.Outpoint.Index = readUint32(data[off:])
	off += 4
	u.Amount = readInt64(data[off:])
	off += 8
	scriptLen := int(readUint32(data[off:]))
	off += 4
	if len(data) < off+scriptLen {
		return disbursal.UTXO{}, fmt.Errorf("peg: encoded UTXO pkScript truncated")
	}
	u.PkScript = append([]byte(nil), data[off:off+scriptLen]...)
	return u, nil
}
