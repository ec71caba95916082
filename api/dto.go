package api

import "github.com/goliatone/go-credits/core"

type initializeRegistryBody struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type mintBody struct {
	To             string `json:"to"`
	TypeOfCredit   string `json:"typeOfCredit"`
	Quantity       int64  `json:"quantity"`
	CertificateURI string `json:"certificateURI"`
	ExpiryDate     int64  `json:"expiryDate"`
	Rate           string `json:"rate"`
}

type transferBody struct {
	To string `json:"to"`
}

type minterBody struct {
	Minter string `json:"minter"`
}

type rateBody struct {
	Rate string `json:"rate"`
}

type reduceBody struct {
	Quantity int64 `json:"quantity"`
}

type withdrawBody struct {
	Amount string `json:"amount"`
}

type initializeMarketplaceBody struct {
	CarbonCreditNFT string `json:"carbonCreditNFT"`
}

type purchaseBody struct {
	TokenID int64  `json:"tokenId"`
	Price   string `json:"price"`
}

type CreditResponse struct {
	ID             int64  `json:"id"`
	TypeOfCredit   string `json:"typeOfCredit"`
	Quantity       int64  `json:"quantity"`
	CertificateURI string `json:"certificateURI"`
	ExpiryDate     int64  `json:"expiryDate"`
	Retired        bool   `json:"retired"`
}

func toCreditResponse(credit core.Credit) CreditResponse {
	return CreditResponse{
		ID:             credit.ID,
		TypeOfCredit:   credit.TypeOfCredit,
		Quantity:       credit.Quantity,
		CertificateURI: credit.CertificateURI,
		ExpiryDate:     credit.ExpiryDate,
		Retired:        credit.Retired,
	}
}

type MintResponse struct {
	Credit CreditResponse `json:"credit"`
	Owner  string         `json:"owner"`
	Rate   string         `json:"rate"`
}

type SettingsResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply int64  `json:"totalSupply"`
	TokenID     int64  `json:"tokenId"`
	DefaultRate string `json:"defaultRate"`
	Owner       string `json:"owner"`
}

type OwnerResponse struct {
	TokenID int64   `json:"tokenId"`
	Owner   *string `json:"owner"`
}

type RateResponse struct {
	TokenID int64   `json:"tokenId"`
	Rate    *string `json:"rate"`
}

type MarketSettingsResponse struct {
	CarbonCreditNFT string `json:"carbonCreditNFT"`
	Owner           string `json:"owner"`
}

type PurchaseResponse struct {
	TokenID   int64  `json:"tokenId"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

func toPurchaseResponse(purchase core.Purchase) PurchaseResponse {
	return PurchaseResponse{
		TokenID:   purchase.TokenID,
		Buyer:     purchase.Buyer,
		Seller:    purchase.Seller,
		Price:     purchase.Price,
		Timestamp: purchase.Timestamp,
	}
}

type WithdrawResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
