package types

import (
	"errors"
)

const PublicKeyTypeED25519 = "ED25519"

// WalletCreateRequest is the body of POST /wallets.
type WalletCreateRequest struct {
	Name               string `json:"name"`
	MinWeightOfSigners int    `json:"minWeightOfSigners"`
}

func (r WalletCreateRequest) IsValid() error {
	if r.Name == "" {
		return errors.New("invalid wallet name")
	}
	if r.MinWeightOfSigners <= 0 {
		return errors.New("invalid min weight of signers")
	}
	return nil
}

// Signer is a key registered on a multisig wallet. It is also the body of
// PUT /wallets/{id}/signer.
type Signer struct {
	WalletAddress   string `json:"walletAddress"`
	PublicKey       string `json:"publicKey"`
	PublicKeyType   string `json:"publicKeyType"`
	SignatureWeight int    `json:"signatureWeight"`
}

func (s Signer) IsValid() error {
	if s.WalletAddress == "" {
		return errors.New("invalid wallet address")
	}
	if s.PublicKey == "" {
		return errors.New("invalid public key")
	}
	if s.PublicKeyType == "" {
		return errors.New("invalid public key type")
	}
	if s.SignatureWeight <= 0 {
		return errors.New("invalid signature weight")
	}
	return nil
}

// NewSigner builds the signer registration for an account's primary wallet.
func NewSigner(account Account, weight int) (Signer, error) {
	w, err := account.PrimaryWallet()
	if err != nil {
		return Signer{}, err
	}
	return Signer{
		WalletAddress:   w.Address,
		PublicKey:       w.PublicKey,
		PublicKeyType:   PublicKeyTypeED25519,
		SignatureWeight: weight,
	}, nil
}

type Wallet struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	MinWeightOfSigners int      `json:"minWeightOfSigners,omitempty"`
	Signers            []Signer `json:"signers,omitempty"`
	Generated          bool     `json:"generated"`
	Address            string   `json:"address,omitempty"`
}

func (w Wallet) IsValid() error {
	if w.ID == "" {
		return errors.New("missing wallet id")
	}
	return nil
}

// TotalWeight sums the weight of every registered signer.
func (w Wallet) TotalWeight() int {
	total := 0
	for _, s := range w.Signers {
		total += s.SignatureWeight
	}
	return total
}

// WalletGenerateRequest is the body of PUT /wallets/{id}/generate.
type WalletGenerateRequest struct {
	MinWeightOfSigners int `json:"minWeightOfSigners"`
}
