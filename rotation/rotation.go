// Package rotation implements P2SS rotation (spec.md §4.G): whenever the
// validator set or the signatory key registry changes, it recomputes the
// signatory set, the weighted threshold witness script and the P2SS
// address, archives the prior address under its own key and publishes the
// new one as current. Rotation never migrates UTXOs: funds already paid to
// a prior P2SS address remain spendable by that address's own witness
// script (spec.md §4.G, Testable Property 3).
package rotation

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/palomachain/peg/internal/pegcfg"
	"github.com/palomachain/peg/keyreg"
	"github.com/palomachain/peg/pegerrors"
	"github.com/palomachain/peg/script"
	"github.com/palomachain/peg/signatory"
)

// Snapshot is one generation of the signatory set together with the
// witness script and P2WSH address it derives (spec.md §3, p2ss_addresses
// history keyed by address).
type Snapshot struct {
	Address       btcutil.Address
	PkScript      []byte
	WitnessScript []byte
	Set           signatory.Set
	Signatories   []signatory.Signatory
	Threshold     uint64
}

// Rotator holds the current P2SS snapshot and every prior one, keyed by
// address, so that deposits to any previously-published address are still
// recognized (spec.md §4.D's "currently-tracked P2SS address").
type Rotator struct {
	network        pegcfg.Network
	maxSignatories uint32

	current Snapshot
	archive map[string]Snapshot
}

// New constructs an empty Rotator; call Rotate once to publish the first
// signatory set and P2SS address.
func New(cfg pegcfg.Config) *Rotator {
	return &Rotator{
		network:        cfg.Network,
		maxSignatories: cfg.MaxSignatories,
		archive:        make(map[string]Snapshot),
	}
}

// Rotate recomputes the signatory set from validators (ranked and
// truncated per signatory.Select) and the committed keys held in registry,
// builds the weighted threshold witness script and its P2WSH address, and
// publishes the result as the new current snapshot. The prior current
// snapshot, if any, remains in the archive under its own address.
func (r *Rotator) Rotate(validators []signatory.Validator, registry *keyreg.Registry) (Snapshot, error) {
	entries := signatory.Select(validators, r.maxSignatories)
	if signatory.TotalVotingPower(entries) == 0 {
		return Snapshot{}, pegerrors.New(pegerrors.ErrEmptySignatorySet,
			"validator set selects to a signatory set with zero total voting power", nil)
	}
	set := signatory.NewSet(entries)
	sigs := set.WithSignatories(registry.Snapshot())
	threshold := set.Threshold()

	witnessScript, err := script.Build(sigs, threshold)
	if err != nil {
		return Snapshot{}, pegerrors.New(pegerrors.ErrEmptySignatorySet,
			"signatory set cannot yet produce a witness script", err)
	}
	addr, err := script.P2WSHAddress(witnessScript, r.network)
	if err != nil {
		return Snapshot{}, err
	}
	pkScript, err := script.PkScript(witnessScript, r.network)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Address:       addr,
		PkScript:      pkScript,
		WitnessScript: witnessScript,
		Set:           set,
		Signatories:   sigs,
		Threshold:     threshold,
	}
	r.archive[addr.EncodeAddress()] = snap
	r.current = snap
	log.Infof("rotated to P2SS address %s (%d signatories, threshold %d)",
		addr.EncodeAddress(), len(sigs), threshold)
	return snap, nil
}

// Current returns the currently-published P2SS snapshot.
func (r *Rotator) Current() Snapshot {
	return r.current
}

// ArchivedAt returns the snapshot published under a given address,
// whether current or a prior generation, and whether one was found.
func (r *Rotator) ArchivedAt(address string) (Snapshot, bool) {
	snap, ok := r.archive[address]
	return snap, ok
}

// IsTracked implements spv.TrackedAddresses: it reports whether pkScript
// pays any P2SS address this Rotator has ever published, current or
// archived, since a deposit may legitimately land on a prior address.
func (r *Rotator) IsTracked(pkScript []byte) bool {
	for _, snap := range r.archive {
		if scriptsEqual(snap.PkScript, pkScript) {
			return true
		}
	}
	return false
}

func scriptsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
