package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountCreateResponseIsValid(t *testing.T) {
	testCases := []struct {
		name    string
		resp    AccountCreateResponse
		wantErr string
	}{
		{
			name:    "Missing account",
			resp:    AccountCreateResponse{},
			wantErr: "missing account",
		},
		{
			name:    "Missing id",
			resp:    AccountCreateResponse{Account: &Account{}},
			wantErr: "missing account id",
		},
		{
			name:    "No wallets",
			resp:    AccountCreateResponse{Account: &Account{ID: "a1"}},
			wantErr: "account a1 has no wallets",
		},
		{
			name: "Wallet without public key",
			resp: AccountCreateResponse{Account: &Account{
				ID:      "a1",
				Wallets: []AccountWallet{{Address: "0xabc"}},
			}},
			wantErr: "account a1 primary wallet is missing address or public key",
		},
		{
			name: "Valid",
			resp: AccountCreateResponse{Account: &Account{
				ID:      "a1",
				Wallets: []AccountWallet{{Address: "0xabc", PublicKey: "pk"}},
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.resp.IsValid()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestNewSigner(t *testing.T) {
	account := Account{
		ID: "a1",
		Wallets: []AccountWallet{
			{Address: "0xprimary", PublicKey: "pk1"},
			{Address: "0xsecondary", PublicKey: "pk2"},
		},
	}

	signer, err := NewSigner(account, 1)
	require.NoError(t, err)
	assert.Equal(t, Signer{
		WalletAddress:   "0xprimary",
		PublicKey:       "pk1",
		PublicKeyType:   PublicKeyTypeED25519,
		SignatureWeight: 1,
	}, signer)
	assert.NoError(t, signer.IsValid())

	_, err = NewSigner(Account{ID: "a2"}, 1)
	assert.Error(t, err)
}

func TestWalletTotalWeight(t *testing.T) {
	w := Wallet{ID: "w1", Signers: []Signer{{SignatureWeight: 1}, {SignatureWeight: 2}}}
	assert.Equal(t, 3, w.TotalWeight())
	assert.Equal(t, 0, Wallet{}.TotalWeight())
	assert.Error(t, Wallet{}.IsValid())
}

func TestSignatureProcessIsComplete(t *testing.T) {
	assert.True(t, SignatureProcess{Status: SignatureStatusComplete}.IsComplete())
	assert.True(t, SignatureProcess{Status: "COMPLETE"}.IsComplete())
	assert.False(t, SignatureProcess{Status: SignatureStatusPending}.IsComplete())
	assert.False(t, SignatureProcess{}.IsComplete())

	p := SignatureProcess{ID: "p1", Signatures: []ProcessSignature{{SignatureWeight: 1}, {SignatureWeight: 1}}}
	assert.Equal(t, 2, p.CollectedWeight())
}

func TestRunRecordNames(t *testing.T) {
	r := RunRecord{
		RunID:     "8d1c",
		StartedAt: time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "multisig-demo-run-8d1c", r.Key())
	assert.Equal(t, "runs/2024-03-09/8d1c.json", r.ReportName())
}

func TestErrorResponseText(t *testing.T) {
	assert.Equal(t, "bad", ErrorResponse{Error: "bad", Message: "ignored"}.Text())
	assert.Equal(t, "msg", ErrorResponse{Message: "msg"}.Text())
}
