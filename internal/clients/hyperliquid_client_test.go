package clients

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerKey(t *testing.T) {
	generated, err := signerKey("")
	require.NoError(t, err)
	require.NotNil(t, generated)

	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(generated))
	parsed, err := signerKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(generated.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))

	_, err = signerKey("zz")
	assert.Error(t, err)
}
