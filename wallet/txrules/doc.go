// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides functions that help establish whether a
transaction's outputs abide by basic consensus rules (non-negative,
within the maximum Bitcoin amount) and estimates fees for a given
relay-fee-per-kilobyte policy.
*/
package txrules
