package api

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vultisig/multisig-demo/common"
	"github.com/vultisig/multisig-demo/internal/types"
)

var (
	errNotFound   = errors.New("not found")
	errConflict   = errors.New("conflict")
	errValidation = errors.New("validation failed")
	errQuorum     = errors.New("quorum not met")
)

type sandboxAccount struct {
	account    types.Account
	privateKey ed25519.PrivateKey
}

type sandboxProcess struct {
	process types.SignatureProcess
	data    []byte
}

// Sandbox is an in-memory custody service. It holds ED25519 keys for every
// account and enforces the multisig rules: a wallet generates only once its
// signer weight reaches the threshold, a signature process needs a generated
// wallet, and a process completes once verified signatures reach the threshold.
type Sandbox struct {
	mu          sync.Mutex
	accounts    map[string]*sandboxAccount
	externalIDs map[string]string
	wallets     map[string]*types.Wallet
	processes   map[string]*sandboxProcess
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		accounts:    map[string]*sandboxAccount{},
		externalIDs: map[string]string{},
		wallets:     map[string]*types.Wallet{},
		processes:   map[string]*sandboxProcess{},
	}
}

func addressOf(publicKey ed25519.PublicKey) string {
	sum := sha256.Sum256(publicKey)
	return "0x" + hex.EncodeToString(sum[:20])
}

func (s *Sandbox) CreateAccount(req types.AccountCreateRequest) (types.Account, error) {
	if err := req.IsValid(); err != nil {
		return types.Account{}, fmt.Errorf("%w: %w", errValidation, err)
	}
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.Account{}, fmt.Errorf("fail to generate key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.externalIDs[req.ExternalID]; ok {
		return types.Account{}, fmt.Errorf("%w: external id %s already used", errConflict, req.ExternalID)
	}
	account := types.Account{
		ID:         uuid.New().String(),
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Wallets: []types.AccountWallet{{
			Address:       addressOf(publicKey),
			PublicKey:     base64.StdEncoding.EncodeToString(publicKey),
			PublicKeyType: types.PublicKeyTypeED25519,
		}},
	}
	s.accounts[account.ID] = &sandboxAccount{account: account, privateKey: privateKey}
	s.externalIDs[req.ExternalID] = account.ID
	return account, nil
}

func (s *Sandbox) CreateWallet(req types.WalletCreateRequest) (types.Wallet, error) {
	if err := req.IsValid(); err != nil {
		return types.Wallet{}, fmt.Errorf("%w: %w", errValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet := &types.Wallet{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		MinWeightOfSigners: req.MinWeightOfSigners,
	}
	s.wallets[wallet.ID] = wallet
	return *wallet, nil
}

func (s *Sandbox) AddSigner(walletID string, signer types.Signer) (types.Wallet, error) {
	if err := signer.IsValid(); err != nil {
		return types.Wallet{}, fmt.Errorf("%w: %w", errValidation, err)
	}
	if signer.PublicKeyType != types.PublicKeyTypeED25519 {
		return types.Wallet{}, fmt.Errorf("%w: unsupported public key type %s", errValidation, signer.PublicKeyType)
	}
	publicKey, err := common.DecodeBase64(signer.PublicKey)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return types.Wallet{}, fmt.Errorf("%w: invalid ED25519 public key", errValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[walletID]
	if !ok {
		return types.Wallet{}, fmt.Errorf("%w: wallet %s", errNotFound, walletID)
	}
	if wallet.Generated {
		return types.Wallet{}, fmt.Errorf("%w: wallet %s is already generated", errConflict, walletID)
	}
	for _, existing := range wallet.Signers {
		if existing.PublicKey == signer.PublicKey {
			return types.Wallet{}, fmt.Errorf("%w: signer already registered", errConflict)
		}
	}
	wallet.Signers = append(wallet.Signers, signer)
	return copyWallet(wallet), nil
}

// GenerateWallet finalizes the wallet. minWeightOfSigners can raise the
// threshold given at creation but never lower it.
func (s *Sandbox) GenerateWallet(walletID string, minWeightOfSigners int) (types.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[walletID]
	if !ok {
		return types.Wallet{}, fmt.Errorf("%w: wallet %s", errNotFound, walletID)
	}
	if wallet.Generated {
		return copyWallet(wallet), nil
	}
	threshold := wallet.MinWeightOfSigners
	if minWeightOfSigners > threshold {
		threshold = minWeightOfSigners
	}
	if total := wallet.TotalWeight(); total < threshold {
		return types.Wallet{}, fmt.Errorf("%w: signer weight %d is below %d", errQuorum, total, threshold)
	}
	h := sha256.New()
	for _, signer := range wallet.Signers {
		h.Write([]byte(signer.PublicKey))
	}
	wallet.MinWeightOfSigners = threshold
	wallet.Generated = true
	wallet.Address = "0x" + hex.EncodeToString(h.Sum(nil)[:20])
	return copyWallet(wallet), nil
}

func (s *Sandbox) SignBase64(accountID, b64DataToSign string) (types.SignDataResponse, error) {
	data, err := common.DecodeBase64(b64DataToSign)
	if err != nil {
		return types.SignDataResponse{}, fmt.Errorf("%w: b64DataToSign: %w", errValidation, err)
	}
	s.mu.Lock()
	acc, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return types.SignDataResponse{}, fmt.Errorf("%w: account %s", errNotFound, accountID)
	}
	signature := ed25519.Sign(acc.privateKey, data)
	return types.SignDataResponse{Signature: base64.StdEncoding.EncodeToString(signature)}, nil
}

func (s *Sandbox) CreateProcess(req types.SignatureProcessCreateRequest) (types.SignatureProcess, error) {
	if err := req.IsValid(); err != nil {
		return types.SignatureProcess{}, fmt.Errorf("%w: %w", errValidation, err)
	}
	data, err := common.DecodeBase64(req.B64DataToSign)
	if err != nil {
		return types.SignatureProcess{}, fmt.Errorf("%w: b64DataToSign: %w", errValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[req.WalletID]
	if !ok {
		return types.SignatureProcess{}, fmt.Errorf("%w: wallet %s", errNotFound, req.WalletID)
	}
	if !wallet.Generated {
		return types.SignatureProcess{}, fmt.Errorf("%w: wallet %s is not generated", errConflict, req.WalletID)
	}
	p := &sandboxProcess{
		process: types.SignatureProcess{
			ID:            uuid.New().String(),
			WalletID:      wallet.ID,
			B64DataToSign: req.B64DataToSign,
			Status:        types.SignatureStatusPending,
		},
		data: data,
	}
	s.processes[p.process.ID] = p
	return p.process, nil
}

// SubmitSignature verifies the signature against every signer of the wallet
// and records it for the first match.
func (s *Sandbox) SubmitSignature(processID, b64Signature string) (types.SignatureProcess, error) {
	signature, err := common.DecodeBase64(b64Signature)
	if err != nil {
		return types.SignatureProcess{}, fmt.Errorf("%w: b64Signature: %w", errValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[processID]
	if !ok {
		return types.SignatureProcess{}, fmt.Errorf("%w: signature process %s", errNotFound, processID)
	}
	wallet := s.wallets[p.process.WalletID]

	var matched *types.Signer
	for i := range wallet.Signers {
		publicKey, err := common.DecodeBase64(wallet.Signers[i].PublicKey)
		if err != nil || len(publicKey) != ed25519.PublicKeySize {
			continue
		}
		if ed25519.Verify(publicKey, p.data, signature) {
			matched = &wallet.Signers[i]
			break
		}
	}
	if matched == nil {
		return types.SignatureProcess{}, fmt.Errorf("%w: signature does not match any signer", errValidation)
	}
	for _, existing := range p.process.Signatures {
		if existing.PublicKey == matched.PublicKey {
			return types.SignatureProcess{}, fmt.Errorf("%w: signer already signed", errConflict)
		}
	}
	p.process.Signatures = append(p.process.Signatures, types.ProcessSignature{
		PublicKey:       matched.PublicKey,
		B64Signature:    b64Signature,
		SignatureWeight: matched.SignatureWeight,
	})
	if p.process.CollectedWeight() >= wallet.MinWeightOfSigners {
		p.process.Status = types.SignatureStatusComplete
	}
	return copyProcess(p.process), nil
}

func (s *Sandbox) GetProcess(processID string) (types.SignatureProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processes[processID]
	if !ok {
		return types.SignatureProcess{}, fmt.Errorf("%w: signature process %s", errNotFound, processID)
	}
	return copyProcess(p.process), nil
}

func copyWallet(w *types.Wallet) types.Wallet {
	out := *w
	out.Signers = append([]types.Signer(nil), w.Signers...)
	return out
}

func copyProcess(p types.SignatureProcess) types.SignatureProcess {
	p.Signatures = append([]types.ProcessSignature(nil), p.Signatures...)
	return p
}
