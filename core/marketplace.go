package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Marketplace sells registry credits for the settlement asset. Payment, the
// registry transfer and the purchase record commit in one transaction.
type Marketplace struct {
	svc      *Service
	name     string
	contract CreditContract
}

func (m *Marketplace) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

func (m *Marketplace) Initialize(ctx context.Context, req InitializeMarketplaceRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": m.Name(), "carbon_credit_nft": req.CarbonCreditNFT}
	defer func() {
		m.svc.observeOperation(ctx, startedAt, "marketplace.initialize", err, fields)
	}()

	call, err := m.svc.resolveCall(ctx)
	if err != nil {
		return err
	}
	fields["caller"] = call.Caller
	reference := strings.TrimSpace(req.CarbonCreditNFT)
	if reference == "" {
		fields["skipped"] = true
		return nil
	}

	return m.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, found, err := tx.Market().Get(ctx)
		if err != nil {
			return err
		}
		if found {
			fields["skipped"] = true
			return nil
		}
		return tx.Market().Insert(ctx, MarketSettings{
			CarbonCreditNFT: reference,
			Owner:           call.Caller,
		})
	})
}

func (m *Marketplace) PurchaseToken(ctx context.Context, req PurchaseRequest) (purchase Purchase, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": m.Name(), "token_id": req.TokenID, "price": req.Price}
	defer func() {
		m.svc.observeOperation(ctx, startedAt, "marketplace.purchase_token", err, fields)
	}()

	call, err := m.svc.resolveCall(ctx)
	if err != nil {
		return Purchase{}, err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = m.svc.mapError(err)
		return Purchase{}, err
	}
	price, err := parseSettlementAmount("price", req.Price)
	if err != nil {
		err = m.svc.mapError(err)
		return Purchase{}, err
	}
	symbol := m.svc.config.Registry.SettlementSymbol

	err = m.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		contract, err := m.resolveContract(ctx, tx)
		if err != nil {
			return err
		}

		spendable, err := tx.Balances().Spendable(ctx, symbol, call.Caller)
		if err != nil {
			return err
		}
		if spendable.LessThan(price) {
			return InsufficientPaymentError("insufficient payment")
		}

		credit, found, err := contract.CreditInTx(ctx, tx, req.TokenID)
		if err != nil {
			return err
		}
		if !found {
			return NotFoundError(fmt.Sprintf("credit %d does not exist", req.TokenID))
		}
		if credit.Expired(call.Timestamp) {
			return ExpiredError(fmt.Sprintf("credit %d is expired", req.TokenID))
		}

		seller, found, err := contract.OwnerOfInTx(ctx, tx, req.TokenID)
		if err != nil {
			return err
		}
		if !found || strings.TrimSpace(seller) == "" {
			return InvalidSellerError(fmt.Sprintf("credit %d has no seller", req.TokenID))
		}

		if err := tx.Balances().Transfer(ctx, symbol, call.Caller, seller, price); err != nil {
			return err
		}

		sellerCtx := WithCallContext(ctx, CallContext{
			Caller:    seller,
			Timestamp: call.Timestamp,
			Contract:  m.name,
		})
		if err := contract.TransferInTx(sellerCtx, tx, TransferRequest{To: call.Caller, TokenID: req.TokenID}); err != nil {
			return err
		}

		purchase = Purchase{
			TokenID:   req.TokenID,
			Buyer:     call.Caller,
			Seller:    seller,
			Price:     FormatAmount(price),
			Timestamp: call.Timestamp.Unix(),
		}
		if err := tx.Purchases().Insert(ctx, purchase); err != nil {
			return err
		}
		return m.svc.emit(ctx, tx, call, m.name, EventNFTPurchased, map[string]any{
			"tokenId": purchase.TokenID,
			"buyer":   purchase.Buyer,
			"seller":  purchase.Seller,
			"price":   purchase.Price,
		})
	})
	if err != nil {
		return Purchase{}, err
	}
	fields["seller"] = purchase.Seller
	return purchase, nil
}

func (m *Marketplace) Withdraw(ctx context.Context, req WithdrawRequest) (result WithdrawResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"contract": m.Name(), "amount": req.Amount}
	defer func() {
		m.svc.observeOperation(ctx, startedAt, "marketplace.withdraw", err, fields)
	}()

	call, err := m.svc.resolveCall(ctx)
	if err != nil {
		return WithdrawResult{}, err
	}
	fields["caller"] = call.Caller
	if err = req.Validate(); err != nil {
		err = m.svc.mapError(err)
		return WithdrawResult{}, err
	}

	err = m.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		settings, err := m.settingsInTx(ctx, tx)
		if err != nil {
			return err
		}
		if call.Caller != settings.Owner {
			return AuthorizationError("not the owner")
		}
		result, err = m.svc.withdrawInTx(ctx, tx, call, m.name, settings.Owner, req)
		return err
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	fields["withdrawn"] = result.Amount
	return result, nil
}

func (m *Marketplace) GetMarketSettings(ctx context.Context) (settings MarketSettings, err error) {
	err = m.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		settings, err = m.settingsInTx(ctx, tx)
		return err
	})
	return settings, err
}

func (m *Marketplace) ListPurchases(ctx context.Context, filter PurchaseFilter) (purchases []Purchase, err error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, m.svc.mapError(fieldError("limit", "limit and offset must not be negative"))
	}
	err = m.svc.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		purchases, err = tx.Purchases().List(ctx, filter)
		return err
	})
	return purchases, err
}

func (m *Marketplace) settingsInTx(ctx context.Context, tx Tx) (MarketSettings, error) {
	settings, found, err := tx.Market().Get(ctx)
	if err != nil {
		return MarketSettings{}, err
	}
	if !found {
		return MarketSettings{}, NotFoundError(fmt.Sprintf("marketplace %s is not initialized", m.name))
	}
	return settings, nil
}

// resolveContract returns the registry the marketplace was initialized with.
func (m *Marketplace) resolveContract(ctx context.Context, tx Tx) (CreditContract, error) {
	settings, err := m.settingsInTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if m.contract == nil || m.contract.Name() != settings.CarbonCreditNFT {
		return nil, NotFoundError(fmt.Sprintf("credit contract %s is not available", settings.CarbonCreditNFT))
	}
	return m.contract, nil
}
