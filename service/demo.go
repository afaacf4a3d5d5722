package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/internal/types"
)

var (
	// ErrQuorumNotMet means the signers that were registered do not carry
	// enough weight for the wallet threshold.
	ErrQuorumNotMet = errors.New("registered signer weight is below the wallet threshold")
	// ErrProcessIncomplete means polling ended before the process reached quorum.
	ErrProcessIncomplete = errors.New("signature process did not complete")
)

// CustodyAPI is the subset of the custody client the demo drives.
type CustodyAPI interface {
	CreateAccount(ctx context.Context, name, externalID string) (*types.Account, error)
	CreateMultisigWallet(ctx context.Context, name string, minWeightOfSigners int) (*types.Wallet, error)
	AddSigner(ctx context.Context, walletID string, account types.Account, weight int) error
	GenerateWallet(ctx context.Context, walletID string, minWeightOfSigners int) error
	CreateAccountSignature(ctx context.Context, accountID, data string) (string, error)
	CreateMultiSigProcess(ctx context.Context, walletID, data string) (*types.SignatureProcess, error)
	SignMultiSig(ctx context.Context, processID, signature string) error
	WaitForMultiSigProcess(ctx context.Context, processID string, interval, timeout time.Duration) (*types.SignatureProcess, error)
}

type RunJournal interface {
	SaveRun(ctx context.Context, record *types.RunRecord) error
}

type RunArchive interface {
	ArchiveRun(ctx context.Context, record *types.RunRecord) error
}

type DemoService struct {
	cfg      config.Config
	custody  CustodyAPI
	journal  RunJournal
	archive  RunArchive
	logger   *logrus.Logger
	sdClient statsd.ClientInterface
	now      func() time.Time
}

// NewDemoService wires the runner. journal and archive are optional.
func NewDemoService(cfg config.Config, custody CustodyAPI, journal RunJournal, archive RunArchive, sdClient statsd.ClientInterface, logger *logrus.Logger) (*DemoService, error) {
	if custody == nil {
		return nil, fmt.Errorf("custody client cannot be nil")
	}
	if sdClient == nil {
		sdClient = &statsd.NoOpClient{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DemoService{
		cfg:      cfg,
		custody:  custody,
		journal:  journal,
		archive:  archive,
		logger:   logger,
		sdClient: sdClient,
		now:      time.Now,
	}, nil
}

func (s *DemoService) incCounter(name string, tags []string) {
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

func (s *DemoService) measureTime(name string, start time.Time, tags []string) {
	if err := s.sdClient.Timing(name, time.Since(start), tags, 1); err != nil {
		s.logger.Errorf("fail to measure time metric, err: %v", err)
	}
}

// Run executes the whole demo: accounts, wallet, signers, generation, signature
// process, per-account signatures and the final status poll. The returned
// record is populated as far as the run got, even when an error is returned.
func (s *DemoService) Run(ctx context.Context) (*types.RunRecord, error) {
	record := &types.RunRecord{
		RunID:              uuid.New().String(),
		StartedAt:          s.now().UTC(),
		MinWeightOfSigners: s.cfg.Demo.MinWeightOfSigners,
	}
	defer s.measureTime("demo.run.latency", time.Now(), nil)
	s.incCounter("demo.run", nil)

	err := s.run(ctx, record)
	record.FinishedAt = s.now().UTC()
	if err != nil {
		record.Error = err.Error()
		s.incCounter("demo.run.error", nil)
	}
	s.persist(ctx, record)
	return record, err
}

func (s *DemoService) run(ctx context.Context, record *types.RunRecord) error {
	demo := s.cfg.Demo

	accounts, err := s.createAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		record.AccountIDs = append(record.AccountIDs, account.ID)
	}

	wallet, err := s.custody.CreateMultisigWallet(ctx, demo.WalletName, demo.MinWeightOfSigners)
	if err != nil {
		return err
	}
	record.WalletID = wallet.ID
	s.logger.WithFields(logrus.Fields{
		"wallet":     wallet.ID,
		"min_weight": demo.MinWeightOfSigners,
	}).Info("Created wallet")

	added := s.addSigners(ctx, wallet.ID, accounts)
	record.SignersAdded = added
	record.RegisteredWeight = added * demo.SignerWeight
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.RegisteredWeight < demo.MinWeightOfSigners {
		return fmt.Errorf("wallet %s: weight %d < %d: %w", wallet.ID, record.RegisteredWeight, demo.MinWeightOfSigners, ErrQuorumNotMet)
	}

	if err := s.custody.GenerateWallet(ctx, wallet.ID, demo.MinWeightOfSigners); err != nil {
		return err
	}
	s.logger.WithField("wallet", wallet.ID).Info("Generated wallet")

	process, err := s.custody.CreateMultiSigProcess(ctx, wallet.ID, demo.Data)
	if err != nil {
		return err
	}
	record.ProcessID = process.ID
	s.logger.WithField("process", process.ID).Info("Created multisig process")

	record.SignaturesSent = s.collectSignatures(ctx, process.ID, accounts)
	if err := ctx.Err(); err != nil {
		return err
	}

	final, err := s.custody.WaitForMultiSigProcess(ctx, process.ID, s.cfg.Poll.Interval, s.cfg.Poll.Timeout)
	if err != nil {
		return err
	}
	record.Status = final.Status
	s.logger.WithFields(logrus.Fields{
		"process": final.ID,
		"status":  final.Status,
	}).Info("Multisig process status")
	if !final.IsComplete() {
		return fmt.Errorf("process %s status %q: %w", final.ID, final.Status, ErrProcessIncomplete)
	}
	return nil
}

// createAccounts creates demo.accounts accounts, each with a fresh
// correlation id. In parallel mode the result keeps creation order by index.
func (s *DemoService) createAccounts(ctx context.Context) ([]types.Account, error) {
	demo := s.cfg.Demo
	accounts := make([]types.Account, demo.Accounts)

	create := func(ctx context.Context, i int) error {
		account, err := s.custody.CreateAccount(ctx, demo.AccountName, uuid.New().String())
		if err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
		accounts[i] = *account
		s.logger.WithFields(logrus.Fields{
			"index":       i,
			"account":     account.ID,
			"external_id": account.ExternalID,
		}).Info("Created account")
		return nil
	}

	if !demo.Parallel {
		for i := range accounts {
			if err := create(ctx, i); err != nil {
				return nil, err
			}
		}
		return accounts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(demo.Concurrency)
	for i := range accounts {
		i := i
		g.Go(func() error {
			return create(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// addSigners registers every account on the wallet and returns how many
// registrations succeeded. A failed registration is logged and skipped; the
// threshold check happens once all of them are done.
func (s *DemoService) addSigners(ctx context.Context, walletID string, accounts []types.Account) int {
	demo := s.cfg.Demo
	ok := make([]bool, len(accounts))

	add := func(ctx context.Context, i int) {
		account := accounts[i]
		if err := s.custody.AddSigner(ctx, walletID, account, demo.SignerWeight); err != nil {
			s.incCounter("demo.signer.error", nil)
			s.logger.WithFields(logrus.Fields{
				"index":   i,
				"account": account.ID,
				"wallet":  walletID,
				"error":   err,
			}).Error("Failed to add signer")
			return
		}
		ok[i] = true
		s.logger.WithFields(logrus.Fields{
			"index":   i,
			"account": account.ID,
			"wallet":  walletID,
		}).Info("Added signer")
	}

	if demo.Parallel {
		var g errgroup.Group
		g.SetLimit(demo.Concurrency)
		for i := range accounts {
			i := i
			g.Go(func() error {
				add(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range accounts {
			if ctx.Err() != nil {
				break
			}
			add(ctx, i)
		}
	}

	added := 0
	for _, v := range ok {
		if v {
			added++
		}
	}
	return added
}

// collectSignatures signs the demo payload with each account and submits the
// signature into the process. It returns the number of accepted submissions.
func (s *DemoService) collectSignatures(ctx context.Context, processID string, accounts []types.Account) int {
	data := s.cfg.Demo.Data
	sent := 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		signature, err := s.custody.CreateAccountSignature(ctx, account.ID, data)
		if err != nil {
			s.incCounter("demo.signature.error", []string{"step:sign"})
			s.logger.WithFields(logrus.Fields{
				"account": account.ID,
				"error":   err,
			}).Error("Failed to create account signature")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"account":   account.ID,
			"signature": signature,
		}).Info("Created signature")

		if err := s.custody.SignMultiSig(ctx, processID, signature); err != nil {
			s.incCounter("demo.signature.error", []string{"step:submit"})
			s.logger.WithFields(logrus.Fields{
				"account": account.ID,
				"process": processID,
				"error":   err,
			}).Error("Failed to sign multisig process")
			continue
		}
		sent++
		s.logger.WithFields(logrus.Fields{
			"account": account.ID,
			"process": processID,
		}).Info("Signed multisig process")
	}
	return sent
}

// persist writes the record to the journal and archive. Failures are logged
// only, so they never mask the run result.
func (s *DemoService) persist(ctx context.Context, record *types.RunRecord) {
	// the run context may already be cancelled; persistence gets its own budget
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if s.journal != nil {
		if err := s.journal.SaveRun(pctx, record); err != nil {
			s.logger.WithFields(logrus.Fields{
				"run":   record.RunID,
				"error": err,
			}).Error("Failed to save run record")
		}
	}
	if s.archive != nil {
		if err := s.archive.ArchiveRun(pctx, record); err != nil {
			s.logger.WithFields(logrus.Fields{
				"run":   record.RunID,
				"error": err,
			}).Error("Failed to archive run record")
		}
	}
}
