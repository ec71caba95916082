package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditRegistry is the carbon-credit NFT contract. It assigns token ids,
// tracks ownership and rates, and holds settlement funds under its contract
// account.
type CreditRegistry struct {
	svc  *Service
	name string
}

func (r *CreditRegistry) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

func (r *CreditRegistry) Initialize(ctx context.Context, req InitializeRegistryRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "name": req.Name, "symbol": req.Symbol}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.initialize", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	name := strings.TrimSpace(req.Name)
	symbol := strings.TrimSpace(req.Symbol)
	if name == "" || symbol == "" {
		fields["skipped"] = true
		return nil
	}

	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, found, err := tx.Settings().Get(ctx)
		if err != nil {
			return err
		}
		if found {
			fields["skipped"] = true
			return nil
		}
		return tx.Settings().Insert(ctx, RegistrySettings{
			Name:        name,
			Symbol:      symbol,
			TotalSupply: 0,
			TokenID:     0,
			DefaultRate: r.svc.config.Registry.DefaultRate,
			Owner:       call.Caller,
		})
	})
}

func (r *CreditRegistry) Mint(ctx context.Context, req MintRequest) (result MintResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "to": req.To}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.mint", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return MintResult{}, err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return MintResult{}, err
	}

	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		settings, err := r.settingsInTx(ctx, tx)
		if err != nil {
			return err
		}
		if call.Caller != settings.Owner {
			isMinter, err := tx.Minters().Exists(ctx, call.Caller)
			if err != nil {
				return err
			}
			if !isMinter {
				return AuthorizationError("not authorized to mint")
			}
		}

		credit := Credit{
			ID:             settings.TokenID,
			TypeOfCredit:   req.TypeOfCredit,
			Quantity:       req.Quantity,
			CertificateURI: req.CertificateURI,
			ExpiryDate:     req.ExpiryDate,
			Retired:        false,
		}
		if err := tx.Credits().Insert(ctx, credit); err != nil {
			return err
		}
		if err := tx.Ownerships().Insert(ctx, Ownership{ID: credit.ID, Account: req.To}); err != nil {
			return err
		}

		settings.TotalSupply++
		settings.TokenID++
		if err := tx.Settings().Update(ctx, settings); err != nil {
			return err
		}

		rate := strings.TrimSpace(req.Rate)
		if rate == "" {
			rate = settings.DefaultRate
		}
		if err := tx.Rates().Upsert(ctx, TokenRate{ID: credit.ID, Rate: rate}); err != nil {
			return err
		}

		result = MintResult{Credit: credit, Owner: req.To, Rate: rate}
		return r.svc.emit(ctx, tx, call, r.name, EventCreditMinted, map[string]any{
			"to":             req.To,
			"id":             credit.ID,
			"rate":           rate,
			"typeofcredit":   credit.TypeOfCredit,
			"quantity":       credit.Quantity,
			"certificateURI": credit.CertificateURI,
			"expiryDate":     credit.ExpiryDate,
		})
	})
	if err != nil {
		return MintResult{}, err
	}
	fields["token_id"] = result.Credit.ID
	r.svc.invalidateRate(ctx, result.Credit.ID)
	return result, nil
}

func (r *CreditRegistry) Transfer(ctx context.Context, req TransferRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "token_id": req.TokenID, "to": req.To}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.transfer", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}
	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		return r.TransferInTx(ctx, tx, req)
	})
}

// TransferInTx moves tokenID to req.To inside tx. The caller recorded in ctx
// must be the current owner.
func (r *CreditRegistry) TransferInTx(ctx context.Context, tx Tx, req TransferRequest) error {
	if r == nil || tx == nil {
		return fmt.Errorf("core: registry transfer is not configured")
	}
	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ownership, found, err := tx.Ownerships().Get(ctx, req.TokenID)
	if err != nil {
		return err
	}
	if !found {
		return NotFoundError(fmt.Sprintf("credit %d does not exist", req.TokenID))
	}
	if ownership.Account != call.Caller {
		return AuthorizationError("not the owner of this credit")
	}

	from := ownership.Account
	ownership.Account = req.To
	if err := tx.Ownerships().Update(ctx, ownership); err != nil {
		return err
	}
	return r.svc.emit(ctx, tx, call, r.name, EventCreditTransferred, map[string]any{
		"from":    from,
		"to":      req.To,
		"tokenId": req.TokenID,
	})
}

func (r *CreditRegistry) Retire(ctx context.Context, req RetireRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "token_id": req.TokenID}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.retire", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}

	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		ownership, found, err := tx.Ownerships().Get(ctx, req.TokenID)
		if err != nil {
			return err
		}
		credit, creditFound, err := tx.Credits().Get(ctx, req.TokenID)
		if err != nil {
			return err
		}
		if !creditFound {
			return NotFoundError(fmt.Sprintf("credit %d does not exist", req.TokenID))
		}
		if credit.Retired {
			return AlreadyRetiredError(fmt.Sprintf("credit %d is already retired", req.TokenID))
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d has no owner", req.TokenID))
		}
		if ownership.Account != call.Caller {
			return AuthorizationError("only the owner can retire this credit")
		}
		settings, err := r.settingsInTx(ctx, tx)
		if err != nil {
			return err
		}

		credit.Retired = true
		if err := tx.Credits().Update(ctx, credit); err != nil {
			return err
		}
		settings.TotalSupply--
		if err := tx.Settings().Update(ctx, settings); err != nil {
			return err
		}
		if err := tx.Ownerships().Delete(ctx, req.TokenID); err != nil {
			return err
		}
		return r.svc.emit(ctx, tx, call, r.name, EventCreditRetired, map[string]any{
			"owner":   call.Caller,
			"tokenId": req.TokenID,
		})
	})
}

func (r *CreditRegistry) AddMinter(ctx context.Context, req MinterRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "minter": req.Minter}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.add_minter", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}
	minter := strings.TrimSpace(req.Minter)

	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := r.requireOwner(ctx, tx, call, "only the owner can add minters"); err != nil {
			return err
		}
		exists, err := tx.Minters().Exists(ctx, minter)
		if err != nil {
			return err
		}
		if exists {
			return DuplicateError(fmt.Sprintf("%s is already a minter", minter))
		}
		if err := tx.Minters().Insert(ctx, AuthorizedMinter{Account: minter}); err != nil {
			return err
		}
		return r.svc.emit(ctx, tx, call, r.name, EventMinterAdded, map[string]any{"minter": minter})
	})
}

func (r *CreditRegistry) RemoveMinter(ctx context.Context, req MinterRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "minter": req.Minter}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.remove_minter", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}
	minter := strings.TrimSpace(req.Minter)

	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := r.requireOwner(ctx, tx, call, "only the owner can remove minters"); err != nil {
			return err
		}
		exists, err := tx.Minters().Exists(ctx, minter)
		if err != nil {
			return err
		}
		if !exists {
			return NotFoundError(fmt.Sprintf("%s is not a minter", minter))
		}
		if err := tx.Minters().Delete(ctx, minter); err != nil {
			return err
		}
		return r.svc.emit(ctx, tx, call, r.name, EventMinterRemoved, map[string]any{"minter": minter})
	})
}

func (r *CreditRegistry) SetRate(ctx context.Context, req SetRateRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "token_id": req.TokenID}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.set_rate", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}
	rate := strings.TrimSpace(req.Rate)

	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := r.requireOwner(ctx, tx, call, "only the owner can set rates"); err != nil {
			return err
		}
		_, found, err := tx.Credits().Get(ctx, req.TokenID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d does not exist", req.TokenID))
		}
		if err := tx.Rates().Upsert(ctx, TokenRate{ID: req.TokenID, Rate: rate}); err != nil {
			return err
		}
		return r.svc.emit(ctx, tx, call, r.name, EventRateSet, map[string]any{
			"tokenId": req.TokenID,
			"rate":    rate,
		})
	})
	if err != nil {
		return err
	}
	r.svc.invalidateRate(ctx, req.TokenID)
	return nil
}

func (r *CreditRegistry) ReduceQuantity(ctx context.Context, req ReduceQuantityRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "token_id": req.TokenID, "quantity": req.Quantity}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.reduce_quantity", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return err
	}

	return r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		ownership, found, err := tx.Ownerships().Get(ctx, req.TokenID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d has no owner", req.TokenID))
		}
		if ownership.Account != call.Caller {
			return AuthorizationError("only the owner can reduce quantity")
		}
		credit, found, err := tx.Credits().Get(ctx, req.TokenID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d does not exist", req.TokenID))
		}
		if req.Quantity > credit.Quantity {
			return InsufficientQuantityError("quantity is greater than available")
		}
		credit.Quantity -= req.Quantity
		if err := tx.Credits().Update(ctx, credit); err != nil {
			return err
		}
		return r.svc.emit(ctx, tx, call, r.name, EventQuantityReduced, map[string]any{
			"tokenId":   req.TokenID,
			"reducedBy": req.Quantity,
			"remaining": credit.Quantity,
		})
	})
}

func (r *CreditRegistry) Withdraw(ctx context.Context, req WithdrawRequest) (result WithdrawResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": r.Name(), "amount": req.Amount}
	defer func() {
		r.svc.observeOperation(ctx, startedAt, "registry.withdraw", err, fields)
	}()

	call, err := r.svc.resolveCall(ctx)
	if err != nil {
		return WithdrawResult{}, err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = r.svc.mapError(err)
		return WithdrawResult{}, err
	}

	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		settings, err := r.settingsInTx(ctx, tx)
		if err != nil {
			return err
		}
		if call.Caller != settings.Owner {
			return AuthorizationError("only the owner can withdraw")
		}
		result, err = r.svc.withdrawInTx(ctx, tx, call, r.name, settings.Owner, req)
		return err
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	fields["withdrawn"] = result.Amount
	return result, nil
}

func (r *CreditRegistry) GetSettings(ctx context.Context) (settings RegistrySettings, err error) {
	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		settings, err = r.settingsInTx(ctx, tx)
		return err
	})
	return settings, err
}

func (r *CreditRegistry) GetCreditOwner(ctx context.Context, tokenID int64) (owner CreditOwner, err error) {
	owner = CreditOwner{TokenID: tokenID}
	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		account, found, err := r.OwnerOfInTx(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if found {
			owner.Owner = stringPtr(account)
		}
		return nil
	})
	return owner, err
}

// OwnerOf is the marketplace-facing name for GetCreditOwner.
func (r *CreditRegistry) OwnerOf(ctx context.Context, tokenID int64) (CreditOwner, error) {
	return r.GetCreditOwner(ctx, tokenID)
}

func (r *CreditRegistry) OwnerOfInTx(ctx context.Context, tx Tx, tokenID int64) (string, bool, error) {
	ownership, found, err := tx.Ownerships().Get(ctx, tokenID)
	if err != nil || !found {
		return "", false, err
	}
	return ownership.Account, true, nil
}

func (r *CreditRegistry) GetCredit(ctx context.Context, tokenID int64) (credit Credit, err error) {
	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		var found bool
		credit, found, err = r.CreditInTx(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d does not exist", tokenID))
		}
		return nil
	})
	return credit, err
}

func (r *CreditRegistry) CreditInTx(ctx context.Context, tx Tx, tokenID int64) (Credit, bool, error) {
	return tx.Credits().Get(ctx, tokenID)
}

// GetCreditsByOwner lists the credits owner currently holds. Retired credits
// have no ownership record and are never listed.
func (r *CreditRegistry) GetCreditsByOwner(ctx context.Context, owner string) (credits []Credit, err error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, r.svc.mapError(fieldError("owner", "owner is required"))
	}
	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		ownerships, err := tx.Ownerships().ListByAccount(ctx, owner)
		if err != nil {
			return err
		}
		if len(ownerships) == 0 {
			credits = []Credit{}
			return nil
		}
		ids := make([]int64, 0, len(ownerships))
		for _, ownership := range ownerships {
			ids = append(ids, ownership.ID)
		}
		credits, err = tx.Credits().ListByIDs(ctx, ids)
		return err
	})
	return credits, err
}

func (r *CreditRegistry) GetRate(ctx context.Context, tokenID int64) (rate CreditRate, err error) {
	rate = CreditRate{TokenID: tokenID}
	if r.svc.rateReader != nil {
		record, found, readErr := r.svc.rateReader.GetRate(ctx, tokenID)
		if readErr != nil {
			return rate, r.svc.mapError(readErr)
		}
		if found {
			rate.Rate = stringPtr(record.Rate)
		}
		return rate, nil
	}
	err = r.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		record, found, err := tx.Rates().Get(ctx, tokenID)
		if err != nil {
			return err
		}
		if found {
			rate.Rate = stringPtr(record.Rate)
		}
		return nil
	})
	return rate, err
}

func (r *CreditRegistry) settingsInTx(ctx context.Context, tx Tx) (RegistrySettings, error) {
	settings, found, err := tx.Settings().Get(ctx)
	if err != nil {
		return RegistrySettings{}, err
	}
	if !found {
		return RegistrySettings{}, NotFoundError(fmt.Sprintf("registry %s is not initialized", r.name))
	}
	return settings, nil
}

func (r *CreditRegistry) requireOwner(ctx context.Context, tx Tx, call CallContext, message string) error {
	settings, err := r.settingsInTx(ctx, tx)
	if err != nil {
		return err
	}
	if call.Caller != settings.Owner {
		return AuthorizationError(message)
	}
	return nil
}

func (s *Service) invalidateRate(ctx context.Context, tokenID int64) {
	if s == nil || s.rateInvalidator == nil {
		return
	}
	s.rateInvalidator.InvalidateRate(ctx, tokenID)
}

// withdrawInTx moves funds from the contract account to recipient. An empty
// amount withdraws the whole balance.
func (s *Service) withdrawInTx(
	ctx context.Context,
	tx Tx,
	call CallContext,
	contract string,
	recipient string,
	req WithdrawRequest,
) (WithdrawResult, error) {
	symbol := s.config.Registry.SettlementSymbol
	balance, err := tx.Balances().Balance(ctx, symbol, contract)
	if err != nil {
		return WithdrawResult{}, err
	}
	amount := balance.Truncate(SettlementPrecision)
	if strings.TrimSpace(req.Amount) != "" {
		requested, err := parseSettlementAmount("amount", req.Amount)
		if err != nil {
			return WithdrawResult{}, err
		}
		amount = requested
	}
	if amount.GreaterThan(balance) {
		return WithdrawResult{}, InsufficientBalanceError("insufficient balance")
	}

	result := WithdrawResult{
		From:   contract,
		To:     recipient,
		Symbol: symbol,
		Amount: FormatAmount(amount),
	}
	if amount.Equal(decimal.Zero) {
		return result, nil
	}
	if err := tx.Balances().Transfer(ctx, symbol, contract, recipient, amount); err != nil {
		return WithdrawResult{}, err
	}
	if err := s.emit(ctx, tx, call, contract, EventWithdrawal, map[string]any{
		"from":   contract,
		"to":     recipient,
		"symbol": symbol,
		"amount": result.Amount,
	}); err != nil {
		return WithdrawResult{}, err
	}
	return result, nil
}
