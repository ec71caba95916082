package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	credits "github.com/goliatone/go-credits"
	creditscommand "github.com/goliatone/go-credits/command"
	"github.com/goliatone/go-credits/core"
	creditsquery "github.com/goliatone/go-credits/query"
)

// CallerHeader names the account submitting a transaction. Authenticating
// it is left to whatever sits in front of the API.
const CallerHeader = "X-Credits-Account"

type Handler struct {
	facade *credits.Facade
}

func NewHandler(facade *credits.Facade) *Handler {
	return &Handler{facade: facade}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	registry := r.Group("/registry")
	registry.POST("/initialize", h.InitializeRegistry)
	registry.POST("/mint", h.Mint)
	registry.POST("/credits/:id/transfer", h.Transfer)
	registry.POST("/credits/:id/retire", h.Retire)
	registry.POST("/credits/:id/reduce", h.ReduceQuantity)
	registry.PUT("/credits/:id/rate", h.SetRate)
	registry.POST("/minters", h.AddMinter)
	registry.DELETE("/minters/:account", h.RemoveMinter)
	registry.POST("/withdraw", h.RegistryWithdraw)
	registry.GET("/settings", h.GetSettings)
	registry.GET("/credits/:id", h.GetCredit)
	registry.GET("/credits/:id/owner", h.GetCreditOwner)
	registry.GET("/credits/:id/rate", h.GetRate)
	registry.GET("/owners/:account/credits", h.GetCreditsByOwner)

	market := r.Group("/marketplace")
	market.POST("/initialize", h.InitializeMarketplace)
	market.POST("/purchase", h.PurchaseToken)
	market.POST("/withdraw", h.MarketplaceWithdraw)
	market.GET("/settings", h.GetMarketSettings)
	market.GET("/purchases", h.ListPurchases)
}

func (h *Handler) InitializeRegistry(c *gin.Context) {
	var body initializeRegistryBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().InitializeRegistry.Execute(c.Request.Context(), creditscommand.InitializeRegistryMessage{
		Caller:  callerFrom(c),
		Request: core.InitializeRegistryRequest{Name: body.Name, Symbol: body.Symbol},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "initialized"})
}

func (h *Handler) Mint(c *gin.Context) {
	var body mintBody
	if !bindJSON(c, &body) {
		return
	}
	collector := gocmd.NewResult[core.MintResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	err := h.facade.Commands().Mint.Execute(ctx, creditscommand.MintMessage{
		Caller: callerFrom(c),
		Request: core.MintRequest{
			To:             body.To,
			TypeOfCredit:   body.TypeOfCredit,
			Quantity:       body.Quantity,
			CertificateURI: body.CertificateURI,
			ExpiryDate:     body.ExpiryDate,
			Rate:           body.Rate,
		},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(http.StatusCreated, MintResponse{
		Credit: toCreditResponse(result.Credit),
		Owner:  result.Owner,
		Rate:   result.Rate,
	})
}

func (h *Handler) Transfer(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	var body transferBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().Transfer.Execute(c.Request.Context(), creditscommand.TransferMessage{
		Caller:  callerFrom(c),
		Request: core.TransferRequest{To: body.To, TokenID: tokenID},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (h *Handler) Retire(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	err := h.facade.Commands().Retire.Execute(c.Request.Context(), creditscommand.RetireMessage{
		Caller:  callerFrom(c),
		Request: core.RetireRequest{TokenID: tokenID},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "retired"})
}

func (h *Handler) ReduceQuantity(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	var body reduceBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().ReduceQuantity.Execute(c.Request.Context(), creditscommand.ReduceQuantityMessage{
		Caller:  callerFrom(c),
		Request: core.ReduceQuantityRequest{TokenID: tokenID, Quantity: body.Quantity},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reduced"})
}

func (h *Handler) SetRate(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	var body rateBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().SetRate.Execute(c.Request.Context(), creditscommand.SetRateMessage{
		Caller:  callerFrom(c),
		Request: core.SetRateRequest{TokenID: tokenID, Rate: body.Rate},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) AddMinter(c *gin.Context) {
	var body minterBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().AddMinter.Execute(c.Request.Context(), creditscommand.AddMinterMessage{
		Caller:  callerFrom(c),
		Request: core.MinterRequest{Minter: body.Minter},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

func (h *Handler) RemoveMinter(c *gin.Context) {
	err := h.facade.Commands().RemoveMinter.Execute(c.Request.Context(), creditscommand.RemoveMinterMessage{
		Caller:  callerFrom(c),
		Request: core.MinterRequest{Minter: c.Param("account")},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *Handler) RegistryWithdraw(c *gin.Context) {
	var body withdrawBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	collector := gocmd.NewResult[core.WithdrawResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	err := h.facade.Commands().RegistryWithdraw.Execute(ctx, creditscommand.RegistryWithdrawMessage{
		Caller:  callerFrom(c),
		Request: core.WithdrawRequest{Amount: body.Amount},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(http.StatusOK, toWithdrawResponse(result))
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.facade.Queries().GetSettings.Query(c.Request.Context(), creditsquery.GetSettingsMessage{})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{
		Name:        settings.Name,
		Symbol:      settings.Symbol,
		TotalSupply: settings.TotalSupply,
		TokenID:     settings.TokenID,
		DefaultRate: settings.DefaultRate,
		Owner:       settings.Owner,
	})
}

func (h *Handler) GetCredit(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	credit, err := h.facade.Queries().GetCredit.Query(c.Request.Context(), creditsquery.GetCreditMessage{TokenID: tokenID})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCreditResponse(credit))
}

func (h *Handler) GetCreditOwner(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	owner, err := h.facade.Queries().GetCreditOwner.Query(c.Request.Context(), creditsquery.GetCreditOwnerMessage{TokenID: tokenID})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, OwnerResponse{TokenID: owner.TokenID, Owner: owner.Owner})
}

func (h *Handler) GetRate(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	rate, err := h.facade.Queries().GetRate.Query(c.Request.Context(), creditsquery.GetRateMessage{TokenID: tokenID})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, RateResponse{TokenID: rate.TokenID, Rate: rate.Rate})
}

func (h *Handler) GetCreditsByOwner(c *gin.Context) {
	owned, err := h.facade.Queries().GetCreditsByOwner.Query(c.Request.Context(), creditsquery.GetCreditsByOwnerMessage{
		Owner: c.Param("account"),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]CreditResponse, 0, len(owned))
	for _, credit := range owned {
		out = append(out, toCreditResponse(credit))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) InitializeMarketplace(c *gin.Context) {
	var body initializeMarketplaceBody
	if !bindJSON(c, &body) {
		return
	}
	err := h.facade.Commands().InitializeMarketplace.Execute(c.Request.Context(), creditscommand.InitializeMarketplaceMessage{
		Caller:  callerFrom(c),
		Request: core.InitializeMarketplaceRequest{CarbonCreditNFT: body.CarbonCreditNFT},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "initialized"})
}

func (h *Handler) PurchaseToken(c *gin.Context) {
	var body purchaseBody
	if !bindJSON(c, &body) {
		return
	}
	collector := gocmd.NewResult[core.Purchase]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	err := h.facade.Commands().PurchaseToken.Execute(ctx, creditscommand.PurchaseTokenMessage{
		Caller:  callerFrom(c),
		Request: core.PurchaseRequest{TokenID: body.TokenID, Price: body.Price},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	purchase, _ := collector.Load()
	c.JSON(http.StatusOK, toPurchaseResponse(purchase))
}

func (h *Handler) MarketplaceWithdraw(c *gin.Context) {
	var body withdrawBody
	if !bindOptionalJSON(c, &body) {
		return
	}
	collector := gocmd.NewResult[core.WithdrawResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	err := h.facade.Commands().MarketplaceWithdraw.Execute(ctx, creditscommand.MarketplaceWithdrawMessage{
		Caller:  callerFrom(c),
		Request: core.WithdrawRequest{Amount: body.Amount},
	})
	if err != nil {
		renderError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(http.StatusOK, toWithdrawResponse(result))
}

func (h *Handler) GetMarketSettings(c *gin.Context) {
	settings, err := h.facade.Queries().GetMarketSettings.Query(c.Request.Context(), creditsquery.GetMarketSettingsMessage{})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, MarketSettingsResponse{CarbonCreditNFT: settings.CarbonCreditNFT, Owner: settings.Owner})
}

func (h *Handler) ListPurchases(c *gin.Context) {
	filter := core.PurchaseFilter{
		Buyer:  strings.TrimSpace(c.Query("buyer")),
		Seller: strings.TrimSpace(c.Query("seller")),
	}
	if raw := strings.TrimSpace(c.Query("tokenId")); raw != "" {
		tokenID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "tokenId must be an integer")
			return
		}
		filter.TokenID = &tokenID
	}
	var ok bool
	if filter.Limit, ok = intQuery(c, "limit"); !ok {
		return
	}
	if filter.Offset, ok = intQuery(c, "offset"); !ok {
		return
	}
	purchases, err := h.facade.Queries().ListPurchases.Query(c.Request.Context(), creditsquery.ListPurchasesMessage{Filter: filter})
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]PurchaseResponse, 0, len(purchases))
	for _, purchase := range purchases {
		out = append(out, toPurchaseResponse(purchase))
	}
	c.JSON(http.StatusOK, out)
}

func toWithdrawResponse(result core.WithdrawResult) WithdrawResponse {
	return WithdrawResponse{
		From:   result.From,
		To:     result.To,
		Symbol: result.Symbol,
		Amount: result.Amount,
	}
}

func callerFrom(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(CallerHeader))
}

func tokenIDParam(c *gin.Context) (int64, bool) {
	tokenID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "token id must be an integer")
		return 0, false
	}
	return tokenID, true
}

func intQuery(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return value, true
}

func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body for endpoints whose fields are all optional.
func bindOptionalJSON(c *gin.Context, target any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, target)
}
