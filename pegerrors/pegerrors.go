// Package pegerrors defines the error-code taxonomy shared by every
// component of the peg module (spec.md §7), following the teacher's
// waddrmgr.ManagerError / wtxmgr.Error pattern: a small ErrorCode enum plus
// a wrapping error type that carries a description and an optional cause.
package pegerrors

import "fmt"

// ErrorCode identifies a kind of rejection raised by the core's admitted
// transaction handlers (spec.md §7). All errors are local rejections: the
// offending transaction is dropped and state is left unchanged.
type ErrorCode int

const (
	// ErrBadFormat indicates a malformed transaction payload.
	ErrBadFormat ErrorCode = iota

	// ErrBadSignature indicates a signature that failed verification,
	// raised by keyreg (ed25519 authentication) or signing (DER
	// signature over a sighash).
	ErrBadSignature

	// ErrBadIndex indicates an out-of-range signatory_index, raised by
	// keyreg or signing.
	ErrBadIndex

	// ErrBadKeyFormat indicates a secp256k1 public key that is not 33
	// bytes or does not decode to a valid compressed point.
	ErrBadKeyFormat

	// ErrUnknownHeight indicates a deposit referencing a header height
	// the chain does not have.
	ErrUnknownHeight

	// ErrBadProof indicates a Merkle proof that does not verify against
	// the referenced header's merkle root.
	ErrBadProof

	// ErrAlreadyProcessed indicates a deposit whose txid is already in
	// the processed-tx set.
	ErrAlreadyProcessed

	// ErrAlreadySigned indicates a signatory resubmitting a signature for
	// a SigningTx it has already signed.
	ErrAlreadySigned

	// ErrNotPeggedPayment indicates a deposit transaction with no output
	// paying a currently-tracked P2SS address.
	ErrNotPeggedPayment

	// ErrMissingCommitment indicates a deposit transaction with no
	// recognizable sidechain-recipient commitment output.
	ErrMissingCommitment

	// ErrInsufficientFunds indicates a disbursal whose inputs do not cover
	// its requested outputs.
	ErrInsufficientFunds

	// ErrOutputBelowFee indicates a disbursal where apportioning the fee
	// would drive a user output to a non-positive amount.
	ErrOutputBelowFee

	// ErrEmptySignatorySet indicates an attempt to derive a P2SS address
	// from a signatory set with zero total voting power, or from a set in
	// which a selected signatory has not yet committed a secp256k1 key.
	ErrEmptySignatorySet

	// ErrKeyRecommitInFlight indicates an attempt to overwrite a
	// signatory's committed key while it has an outstanding signature
	// slot on the current SigningTx (see DESIGN.md Open Question 2).
	ErrKeyRecommitInFlight

	// ErrInsufficientConfirmations indicates a deposit whose proof height
	// has not yet accumulated the configured minimum confirmation depth.
	ErrInsufficientConfirmations
)

func (c ErrorCode) String() string {
	switch c {
	case ErrBadFormat:
		return "BadFormat"
	case ErrBadSignature:
		return "BadSignature"
	case ErrBadIndex:
		return "BadIndex"
	case ErrBadKeyFormat:
		return "BadKeyFormat"
	case ErrUnknownHeight:
		return "UnknownHeight"
	case ErrBadProof:
		return "BadProof"
	case ErrAlreadyProcessed:
		return "AlreadyProcessed"
	case ErrAlreadySigned:
		return "AlreadySigned"
	case ErrNotPeggedPayment:
		return "NotPeggedPayment"
	case ErrMissingCommitment:
		return "MissingCommitment"
	case ErrInsufficientFunds:
		return "InsufficientFunds"
	case ErrOutputBelowFee:
		return "OutputBelowFee"
	case ErrEmptySignatorySet:
		return "EmptySignatorySet"
	case ErrKeyRecommitInFlight:
		return "KeyRecommitInFlight"
	case ErrInsufficientConfirmations:
		return "InsufficientConfirmations"
	default:
		return "Unknown"
	}
}

// PegError wraps an ErrorCode with a human-readable description and an
// optional underlying cause, mirroring the teacher's waddrmgr.ManagerError /
// wtxmgr.Error pattern.
type PegError struct {
	Code        ErrorCode
	Description string
	Err         error
}

func (e PegError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e PegError) Unwrap() error {
	return e.Err
}

// New constructs a PegError with the given code, description and optional
// underlying cause.
func New(code ErrorCode, description string, err error) PegError {
	return PegError{Code: code, Description: description, Err: err}
}
