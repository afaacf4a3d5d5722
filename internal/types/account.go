package types

import (
	"errors"
	"fmt"
)

// AccountCreateRequest is the body of POST /accounts.
type AccountCreateRequest struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId"` // correlation id linking the account to the caller's system
}

func (r AccountCreateRequest) IsValid() error {
	if r.Name == "" {
		return errors.New("invalid account name")
	}
	if r.ExternalID == "" {
		return errors.New("invalid external id")
	}
	return nil
}

// AccountWallet is one key pair held by the custody service for an account.
type AccountWallet struct {
	Address       string `json:"address"`
	PublicKey     string `json:"publicKey"`
	PublicKeyType string `json:"publicKeyType,omitempty"`
}

type Account struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"externalId,omitempty"`
	Name       string          `json:"name,omitempty"`
	Wallets    []AccountWallet `json:"wallets"`
}

// AccountCreateResponse wraps the created account the way the API returns it.
type AccountCreateResponse struct {
	Account *Account `json:"account"`
}

func (r AccountCreateResponse) IsValid() error {
	if r.Account == nil {
		return errors.New("missing account")
	}
	return r.Account.IsValid()
}

// IsValid checks the fields the demo threads into later calls.
func (a Account) IsValid() error {
	if a.ID == "" {
		return errors.New("missing account id")
	}
	if _, err := a.PrimaryWallet(); err != nil {
		return err
	}
	return nil
}

// PrimaryWallet returns the first wallet record, the one registered as a signer.
func (a Account) PrimaryWallet() (AccountWallet, error) {
	if len(a.Wallets) == 0 {
		return AccountWallet{}, fmt.Errorf("account %s has no wallets", a.ID)
	}
	w := a.Wallets[0]
	if w.Address == "" || w.PublicKey == "" {
		return AccountWallet{}, fmt.Errorf("account %s primary wallet is missing address or public key", a.ID)
	}
	return w, nil
}

// SignDataRequest is the body of PUT /accounts/{id}/signbase64.
type SignDataRequest struct {
	B64DataToSign string `json:"b64DataToSign"`
}

type SignDataResponse struct {
	Signature string `json:"signature"`
}

func (r SignDataResponse) IsValid() error {
	if r.Signature == "" {
		return errors.New("missing signature")
	}
	return nil
}
