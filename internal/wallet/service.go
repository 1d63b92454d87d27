// Package wallet handles token balances: on-chain withdrawals through
// an execution engine, internal transfers between citizens, and the
// transaction history both produce.
package wallet

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/worldrepublic/republic/internal/platform/errors"
	"github.com/worldrepublic/republic/internal/platform/money"
	"github.com/worldrepublic/republic/internal/storage"
)

// TokenContractAddress is the ERC-20 contract the engine transfers
// from. It is never a valid withdrawal destination.
const TokenContractAddress = "0xEdE54d9c024ee80C85ec0a75eD2d8774c7Fbac9B"

// Source addresses the engine executes transfers from. World Chain has
// its own funded account; every other chain shares one.
const (
	sourceAddressWorldChain = "0x7aCA7AFDa78884fE0a58fb8B3988B9f93F963950"
	sourceAddressDefault    = "0x55F6020eCA3B523A027596c9a542110302FEC0ac"
)

// chainIDWorldChain is World Chain's EVM chain id.
const chainIDWorldChain = "480"

// MinimumWithdrawal is the smallest amount accepted for an on-chain
// withdrawal.
var MinimumWithdrawal = decimal.NewFromInt(10)

var evmAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// allowedChains are the EVM chains withdrawals may target: BNB Chain,
// Monad, World Chain, and Base.
var allowedChains = map[string]struct{}{
	"56":   {},
	"143":  {},
	"480":  {},
	"8453": {},
}

// Store is the slice of the storage surface the service needs.
type Store interface {
	GetProfileByUsername(ctx context.Context, username string) (storage.Profile, error)
	DebitBalance(ctx context.Context, userUUID string, amount decimal.Decimal) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userUUID string, balance decimal.Decimal) error
	TransferBalance(ctx context.Context, fromUUID, toUUID string, amount decimal.Decimal) error
	AppendTransaction(ctx context.Context, t storage.Transaction) (storage.Transaction, error)
	ListTransactions(ctx context.Context, userUUID string, limit int) ([]storage.Transaction, error)
}

// Service implements wallet operations.
type Service struct {
	store     Store
	processor Processor
	logger    *log.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

// NewService wires the wallet service.
func NewService(store Store, processor Processor, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:     store,
		processor: processor,
		logger:    logger,
		tracer:    otel.Tracer("github.com/worldrepublic/republic/internal/wallet"),
		clock:     time.Now,
	}
}

// Entry is one wallet transaction annotated with the viewer's side of
// it.
type Entry struct {
	Transaction storage.Transaction
	IsReceived  bool
}

// Withdraw debits the citizen's balance and submits an on-chain
// transfer of the floored amount to the destination address. The debit
// is reversed if the engine rejects the submission; an engine success
// that carries no transaction id is recorded as submitted and logged,
// since the transfer may still land on chain.
func (s *Service) Withdraw(ctx context.Context, userUUID, walletAddress, chainID, rawAmount string) (storage.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.withdraw",
		trace.WithAttributes(attribute.String("wallet.chain_id", chainID)))
	defer span.End()

	record, err := s.withdraw(ctx, userUUID, walletAddress, chainID, rawAmount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return record, err
}

func (s *Service) withdraw(ctx context.Context, userUUID, walletAddress, chainID, rawAmount string) (storage.Transaction, error) {
	if !evmAddressPattern.MatchString(walletAddress) {
		return storage.Transaction{}, errors.New(errors.CodeInvalidAddress, "invalid wallet address")
	}
	if strings.EqualFold(walletAddress, TokenContractAddress) {
		return storage.Transaction{}, errors.New(errors.CodeInvalidAddress, "cannot withdraw to the token contract")
	}
	if _, ok := allowedChains[chainID]; !ok {
		return storage.Transaction{}, errors.New(errors.CodeInvalidChain, "unsupported chain")
	}
	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return storage.Transaction{}, errors.New(errors.CodeInvalidAmount, "invalid amount")
	}
	amount = money.Floor18(amount)
	if amount.LessThan(MinimumWithdrawal) {
		return storage.Transaction{}, errors.New(errors.CodeBelowMinimum, fmt.Sprintf("minimum withdrawal is %s", MinimumWithdrawal))
	}

	previous, err := s.store.DebitBalance(ctx, userUUID, amount)
	if err != nil {
		return storage.Transaction{}, err
	}

	call := TransferCall{
		From:        sourceAddress(chainID),
		ChainID:     chainID,
		To:          walletAddress,
		AmountMinor: money.MinorUnits(amount),
	}
	txID, err := s.processor.SubmitTransfer(ctx, call)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeProcessorNoID {
			// The engine accepted the call but returned no id; the
			// transfer may still land on chain, so the debit stands.
			s.logger.Printf("wallet: withdrawal for %s submitted without transaction id: %v", userUUID, err)
			return storage.Transaction{}, err
		}
		if reverseErr := s.store.SetBalance(ctx, userUUID, previous); reverseErr != nil {
			s.logger.Printf("wallet: failed to reverse debit for %s after engine failure: %v", userUUID, reverseErr)
		}
		return storage.Transaction{}, err
	}

	record, err := s.store.AppendTransaction(ctx, storage.Transaction{
		UserUUID:      userUUID,
		Type:          storage.TransactionWithdrawal,
		Amount:        amount,
		WalletAddress: walletAddress,
		Chain:         chainID,
		TransactionID: txID,
		CreatedAt:     s.clock().UTC(),
	})
	if err != nil {
		// The transfer is already in flight; the history row is the
		// only casualty.
		s.logger.Printf("wallet: failed to record withdrawal %s for %s: %v", txID, userUUID, err)
		return storage.Transaction{}, fmt.Errorf("record withdrawal: %w", err)
	}
	return record, nil
}

// Transfer moves tokens from one citizen to another inside the ledger.
// Both balance changes happen in one storage transaction.
func (s *Service) Transfer(ctx context.Context, fromUUID, toUsername, rawAmount string) (storage.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.transfer")
	defer span.End()

	record, err := s.transfer(ctx, fromUUID, toUsername, rawAmount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return record, err
}

func (s *Service) transfer(ctx context.Context, fromUUID, toUsername, rawAmount string) (storage.Transaction, error) {
	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return storage.Transaction{}, errors.New(errors.CodeInvalidAmount, "invalid amount")
	}
	amount = money.Floor18(amount)
	if !amount.IsPositive() {
		return storage.Transaction{}, errors.New(errors.CodeInvalidAmount, "invalid amount")
	}

	recipient, err := s.store.GetProfileByUsername(ctx, toUsername)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return storage.Transaction{}, errors.New(errors.CodeNotFound, "recipient not found")
		}
		return storage.Transaction{}, fmt.Errorf("load recipient: %w", err)
	}
	if recipient.AccountDeletedAt != nil {
		return storage.Transaction{}, errors.New(errors.CodeNotFound, "recipient not found")
	}
	if recipient.UserUUID == fromUUID {
		return storage.Transaction{}, errors.New(errors.CodeInvalidArgument, "cannot transfer to yourself")
	}

	if err := s.store.TransferBalance(ctx, fromUUID, recipient.UserUUID, amount); err != nil {
		return storage.Transaction{}, err
	}

	record, err := s.store.AppendTransaction(ctx, storage.Transaction{
		UserUUID:      fromUUID,
		Type:          storage.TransactionTransfer,
		Amount:        amount,
		RecipientUUID: recipient.UserUUID,
		TransactionID: uuid.NewString(),
		CreatedAt:     s.clock().UTC(),
	})
	if err != nil {
		s.logger.Printf("wallet: failed to record transfer from %s to %s: %v", fromUUID, recipient.UserUUID, err)
		return storage.Transaction{}, fmt.Errorf("record transfer: %w", err)
	}
	return record, nil
}

// History lists the citizen's transactions newest first, flagging the
// transfers they were on the receiving end of.
func (s *Service) History(ctx context.Context, userUUID string, limit int) ([]Entry, error) {
	transactions, err := s.store.ListTransactions(ctx, userUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	entries := make([]Entry, 0, len(transactions))
	for _, t := range transactions {
		entries = append(entries, Entry{
			Transaction: t,
			IsReceived:  t.Type == storage.TransactionTransfer && t.RecipientUUID == userUUID,
		})
	}
	return entries, nil
}

func sourceAddress(chainID string) string {
	if chainID == chainIDWorldChain {
		return sourceAddressWorldChain
	}
	return sourceAddressDefault
}
