package types

import (
	"errors"
	"strings"
)

type SignatureStatus string

const (
	SignatureStatusPending  SignatureStatus = "pending"
	SignatureStatusComplete SignatureStatus = "complete"
)

// SignatureProcessCreateRequest is the body of POST /signatures.
type SignatureProcessCreateRequest struct {
	WalletID      string `json:"walletId"`
	B64DataToSign string `json:"b64DataToSign"`
}

func (r SignatureProcessCreateRequest) IsValid() error {
	if r.WalletID == "" {
		return errors.New("invalid wallet id")
	}
	if r.B64DataToSign == "" {
		return errors.New("invalid data to sign")
	}
	return nil
}

// SignatureSubmitRequest is the body of PUT /signatures/{id}/sign.
type SignatureSubmitRequest struct {
	B64Signature string `json:"b64Signature"`
}

type ProcessSignature struct {
	PublicKey       string `json:"publicKey"`
	B64Signature    string `json:"b64Signature"`
	SignatureWeight int    `json:"signatureWeight"`
}

// SignatureProcess is a server-side aggregation session for one payload.
type SignatureProcess struct {
	ID            string             `json:"id"`
	WalletID      string             `json:"walletId,omitempty"`
	B64DataToSign string             `json:"b64DataToSign,omitempty"`
	Signatures    []ProcessSignature `json:"signatures,omitempty"`
	Status        SignatureStatus    `json:"status"`
}

func (p SignatureProcess) IsValid() error {
	if p.ID == "" {
		return errors.New("missing signature process id")
	}
	return nil
}

// IsComplete reports whether the process reached quorum. The status is
// compared case-insensitively since the live API reports it upper-cased.
func (p SignatureProcess) IsComplete() bool {
	return strings.EqualFold(string(p.Status), string(SignatureStatusComplete))
}

// CollectedWeight sums the weight of every accepted signature.
func (p SignatureProcess) CollectedWeight() int {
	total := 0
	for _, s := range p.Signatures {
		total += s.SignatureWeight
	}
	return total
}
