// Package pegdb is the embedded persistence layer backing peg.State: one
// bbolt bucket per replicated collection (processed deposit txids, the
// UTXO set, header-chain entries and P2SS signatory-set history), mirroring
// the bucket-per-concern layout used elsewhere in the wider btcsuite/bbolt
// ecosystem for chain-state stores.
package pegdb

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	bucketProcessedTxs = []byte("processed_txs")
	bucketUTXOs        = []byte("utxos")
	bucketHeaders      = []byte("headers")
	bucketSignatorySet = []byte("signatory_sets")
	bucketMeta         = []byte("meta")
)

var allBuckets = [][]byte{bucketProcessedTxs, bucketUTXOs, bucketHeaders, bucketSignatorySet, bucketMeta}

// DB is the bbolt-backed store for a single peg core instance.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures every
// collection bucket exists.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("pegdb: open: %w", err)
	}
	d := &DB{bolt: bdb}
	if err := d.bolt.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying bbolt file.
func (d *DB) Close() error {
	if d == nil || d.bolt == nil {
		return nil
	}
	return d.bolt.Close()
}

// ContainsProcessedTx implements spv.ProcessedTxSet.
func (d *DB) ContainsProcessedTx(txid chainhash.Hash) bool {
	var found bool
	_ = d.bolt.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketProcessedTxs).Get(txid[:]) != nil
		return nil
	})
	return found
}

// AddProcessedTx implements spv.ProcessedTxSet.
func (d *DB) AddProcessedTx(txid chainhash.Hash) {
	_ = d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProcessedTxs).Put(txid[:], []byte{1})
	})
}

// PutUTXO records a deposit or change output as spendable.
func (d *DB) PutUTXO(outpointKey []byte, encoded []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXOs).Put(outpointKey, encoded)
	})
}

// DeleteUTXO removes an outpoint once it has been spent by a disbursal.
func (d *DB) DeleteUTXO(outpointKey []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXOs).Delete(outpointKey)
	})
}

// ForEachUTXO iterates every recorded spendable outpoint.
func (d *DB) ForEachUTXO(fn func(key, value []byte) error) error {
	return d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXOs).ForEach(fn)
	})
}

// PutHeader stores a serialized header at its height.
func (d *DB) PutHeader(height uint32, encoded []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(heightKey(height), encoded)
	})
}

// GetHeader returns the serialized header stored at height, if any.
func (d *DB) GetHeader(height uint32) ([]byte, bool, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(heightKey(height))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// PutSignatorySet archives (or publishes, if current) a signatory set's
// encoded form under its P2SS address (spec.md §4.G rotation history).
func (d *DB) PutSignatorySet(address string, encoded []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSignatorySet).Put([]byte(address), encoded)
	})
}

// GetSignatorySet returns the encoded signatory set for address, if any.
func (d *DB) GetSignatorySet(address string) ([]byte, bool, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSignatorySet).Get([]byte(address))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// PutMeta stores a small singleton value (e.g. the current P2SS address,
// the chain tip height) under key.
func (d *DB) PutMeta(key string, value []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), value)
	})
}

// GetMeta returns the value stored for key, if any.
func (d *DB) GetMeta(key string) ([]byte, bool, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

func heightKey(height uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], height)
	return b[:]
}

// OutpointKey encodes a txid:index pair into the byte key used by the
// UTXO bucket, txid first so entries from the same transaction sort
// together.
func OutpointKey(txid chainhash.Hash, index uint32) []byte {
	key := make([]byte, chainhash.HashSize+4)
	copy(key, txid[:])
	binary.BigEndian.PutUint32(key[chainhash.HashSize:], index)
	return key
}
