package pegdb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peg.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProcessedTxRoundTrip(t *testing.T) {
	db := openTestDB(t)
	var txid chainhash.Hash
	txid[0] = 0xaa

	require.False(t, db.ContainsProcessedTx(txid))
	db.AddProcessedTx(txid)
	require.True(t, db.ContainsProcessedTx(txid))
}

func TestUTXOPutDeleteForEach(t *testing.T) {
	db := openTestDB(t)
	var txid chainhash.Hash
	txid[0] = 1
	key := OutpointKey(txid, 3)

	require.NoError(t, db.PutUTXO(key, []byte("encoded-utxo")))

	seen := make(map[string][]byte)
	require.NoError(t, db.ForEachUTXO(func(k, v []byte) error {
		seen[string(k)] = append([]byte(nil), v...)
		return nil
	}))
	require.Equal(t, []byte("encoded-utxo"), seen[string(key)])

	require.NoError(t, db.DeleteUTXO(key))
	seen = make(map[string][]byte)
	require.NoError(t, db.ForEachUTXO(func(k, v []byte) error {
		seen[string(k)] = v
		return nil
	}))
	require.Empty(t, seen)
}

func TestHeaderRoundTrip(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.GetHeader(42)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.PutHeader(42, []byte("header-bytes")))
	got, ok, err := db.GetHeader(42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("header-bytes"), got)
}

func TestSignatorySetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	const addr = "bc1qexampleaddress"

	_, ok, err := db.GetSignatorySet(addr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.PutSignatorySet(addr, []byte("encoded-set")))
	got, ok, err := db.GetSignatorySet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("encoded-set"), got)
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.PutMeta("current_p2ss_address", []byte("bc1qcurrent")))
	got, ok, err := db.GetMeta("current_p2ss_address")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bc1qcurrent"), got)
}

func TestOutpointKeyOrdersByTxidThenIndex(t *testing.T) {
	var txid chainhash.Hash
	txid[0] = 5
	k0 := OutpointKey(txid, 0)
	k1 := OutpointKey(txid, 1)
	require.NotEqual(t, k0, k1)
	require.Len(t, k0, chainhash.HashSize+4)
	require.Negative(t, bytes.Compare(k0, k1))

	var later chainhash.Hash
	later[0] = 6
	require.Negative(t, bytes.Compare(k1, OutpointKey(later, 0)))
}
