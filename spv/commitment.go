package spv

import (
	"github.com/palomachain/peg/pegerrors"
)

// ParseCommitment decodes the sidechain-recipient commitment carried in a
// deposit's second (OP_RETURN-style) output: one length byte followed by
// that many bytes of UTF-8 recipient address (spec.md §4.D step 6, and
// DESIGN.md Open Question 1's pinned format).
func ParseCommitment(data []byte) (string, error) {
	if len(data) < 1 {
		return "", pegerrors.New(pegerrors.ErrMissingCommitment, "commitment output is empty", nil)
	}
	length := int(data[0])
	if len(data) != 1+length {
		return "", pegerrors.New(pegerrors.ErrMissingCommitment, "commitment length byte does not match payload size", nil)
	}
	if length == 0 {
		return "", pegerrors.New(pegerrors.ErrMissingCommitment, "commitment address is empty", nil)
	}
	return string(data[1:]), nil
}
