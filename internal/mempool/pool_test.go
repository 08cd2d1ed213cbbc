package mempool

import (
	"context"
	"testing"

	"github.com/libsv/go-bt/v2"
	"github.com/libsv/go-bt/v2/bscript"
	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feeTx(inputSats, outputSats uint64) *bt.Tx {
	tx := bt.NewTx()
	tx.Inputs = append(tx.Inputs, &bt.Input{
		PreviousTxSatoshis: inputSats,
		PreviousTxOutIndex: 0,
	})
	tx.Outputs = append(tx.Outputs, &bt.Output{Satoshis: outputSats, LockingScript: &bscript.Script{}})
	return tx
}

func TestInMemoryPool_ExistsFalseUntilStored(t *testing.T) {
	p := NewInMemoryPool(PolicyConfig{MinimumFeeSatoshis: 1})
	tx := feeTx(1000, 900)

	hash, err := chainhash.NewHash(tx.TxIDBytes())
	require.NoError(t, err)
	assert.False(t, p.Exists(context.Background(), *hash))

	var acceptErr error
	p.Store(context.Background(), tx, nil, func(err error, _ []int) { acceptErr = err })
	require.NoError(t, acceptErr)

	assert.True(t, p.Exists(context.Background(), *hash))
}

func TestInMemoryPool_RejectsBelowMinimumFee(t *testing.T) {
	p := NewInMemoryPool(PolicyConfig{MinimumFeeSatoshis: 500})
	tx := feeTx(1000, 999)

	var acceptErr error
	p.Store(context.Background(), tx, nil, func(err error, _ []int) { acceptErr = err })
	assert.Error(t, acceptErr)
}

func TestInMemoryPool_SecondStoreIsNoOp(t *testing.T) {
	p := NewInMemoryPool(PolicyConfig{MinimumFeeSatoshis: 1})
	tx := feeTx(1000, 900)

	calls := 0
	onAccepted := func(err error, _ []int) { calls++ }
	p.Store(context.Background(), tx, nil, onAccepted)
	p.Store(context.Background(), tx, nil, onAccepted)

	assert.Equal(t, 2, calls)
}
