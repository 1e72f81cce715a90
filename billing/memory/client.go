package memory

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/model"
)

var _ billing.Client = (*Client)(nil)

type Operation uint8

const (
	OperationQueryProductDetails Operation = iota
	OperationLaunchPurchaseFlow
	OperationAcknowledgePurchase
	OperationConsumePurchase
	OperationQueryPurchases
)

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithCatalog(catalog Catalog) Option {
	return func(c *Client) {
		c.catalog = catalog
	}
}

// WithSetupResult sets the result reported to the connection listener.
func WithSetupResult(result billing.Result) Option {
	return func(c *Client) {
		c.setupResult = result
	}
}

// WithSigner signs every purchase the client creates.
func WithSigner(key ed25519.PrivateKey) Option {
	return func(c *Client) {
		c.signer = key
	}
}

// WithAutoComplete completes every successfully launched flow with a
// purchased, unacknowledged purchase of the launched product.
func WithAutoComplete() Option {
	return func(c *Client) {
		c.autoComplete = true
	}
}

func WithPackageName(packageName string) Option {
	return func(c *Client) {
		c.packageName = packageName
	}
}

// Client simulates the billing service in memory.
//
// Asynchronous calls deliver from their own goroutine. Callbacks triggered
// through CompletePurchase and Disconnect run on the calling goroutine, which
// plays the role of the vendor's worker.
type Client struct {
	log          *zap.Logger
	catalog      Catalog
	signer       ed25519.PrivateKey
	autoComplete bool
	packageName  string
	setupResult  billing.Result

	mu           sync.Mutex
	responses    map[Operation]billing.Result
	conn         billing.ConnectionListener
	updates      billing.PurchasesUpdatedListener
	connected    bool
	owned        []*billing.Purchase
	launches     []billing.FlowParams
	acknowledged []string
	consumed     []string
	endCalls     int
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		log:         zap.NewNop(),
		catalog:     NewStaticCatalog(),
		packageName: "com.example.app",
		setupResult: billing.OK(),
		responses:   map[Operation]billing.Result{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetResponse forces the result of every subsequent call of the given
// operation.
func (c *Client) SetResponse(op Operation, result billing.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses[op] = result
}

func (c *Client) StartConnection(conn billing.ConnectionListener, updates billing.PurchasesUpdatedListener) {
	c.mu.Lock()
	c.conn = conn
	c.updates = updates
	c.mu.Unlock()

	go func() {
		c.mu.Lock()
		c.connected = c.setupResult.IsOK()
		result := c.setupResult
		c.mu.Unlock()

		c.log.Debug("Billing setup finished", zap.Stringer("code", result.Code))
		conn.OnBillingSetupFinished(result)
	}()
}

func (c *Client) EndConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.endCalls++
}

func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Disconnect simulates the service dropping the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.OnBillingServiceDisconnected()
	}
}

// CompletePurchase pushes a purchase update to the listener. Purchased
// purchases in a successful update become owned.
func (c *Client) CompletePurchase(result billing.Result, purchases ...*billing.Purchase) {
	c.mu.Lock()
	if result.IsOK() {
		for _, p := range purchases {
			c.owned = append(c.owned, p.Clone())
		}
	}
	updates := c.updates
	c.mu.Unlock()

	if updates != nil {
		updates.OnPurchasesUpdated(result, purchases)
	}
}

// AddOwned adds a purchase to the owned list without notifying anyone.
func (c *Client) AddOwned(purchases ...*billing.Purchase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range purchases {
		c.owned = append(c.owned, p.Clone())
	}
}

type purchaseJSON struct {
	OrderID             string `json:"orderId"`
	PackageName         string `json:"packageName"`
	ProductID           string `json:"productId"`
	PurchaseTime        int64  `json:"purchaseTime"`
	PurchaseState       int    `json:"purchaseState"`
	PurchaseToken       string `json:"purchaseToken"`
	Quantity            int    `json:"quantity"`
	Acknowledged        bool   `json:"acknowledged"`
	ObfuscatedAccountID string `json:"obfuscatedAccountId,omitempty"`
}

// NewPurchase creates a purchased, unacknowledged purchase of a product,
// signed when the client has a signer.
func (c *Client) NewPurchase(productID, obfuscatedAccountID string) *billing.Purchase {
	p := &billing.Purchase{
		ProductIDs:          []string{productID},
		PurchaseToken:       model.MustGeneratePurchaseToken(),
		OrderID:             model.MustGenerateOrderID(),
		PurchaseTime:        time.Now().Truncate(time.Millisecond),
		State:               billing.PurchaseStatePurchased,
		ObfuscatedAccountID: obfuscatedAccountID,
	}

	payload, err := json.Marshal(&purchaseJSON{
		OrderID:             p.OrderID,
		PackageName:         c.packageName,
		ProductID:           productID,
		PurchaseTime:        p.PurchaseTime.UnixMilli(),
		PurchaseState:       0,
		PurchaseToken:       p.PurchaseToken,
		Quantity:            1,
		ObfuscatedAccountID: obfuscatedAccountID,
	})
	if err != nil {
		panic(err)
	}
	p.OriginalJSON = string(payload)

	if c.signer != nil {
		p.Signature = Sign(c.signer, p.OriginalJSON)
	}

	return p
}

func (c *Client) Launches() []billing.FlowParams {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]billing.FlowParams(nil), c.launches...)
}

func (c *Client) Acknowledged() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.acknowledged...)
}

func (c *Client) Consumed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.consumed...)
}

func (c *Client) EndConnectionCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.endCalls
}

// precheck returns the forced result for an operation, or a disconnected
// result if the connection is down or ctx is done.
func (c *Client) precheck(ctx context.Context, op Operation) (billing.Result, bool) {
	if err := ctx.Err(); err != nil {
		return billing.Result{Code: billing.ResponseCodeServiceDisconnected, DebugMessage: err.Error()}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return billing.ResultOf(billing.ResponseCodeServiceDisconnected), false
	}
	if forced, ok := c.responses[op]; ok && !forced.IsOK() {
		return forced, false
	}
	return billing.OK(), true
}

func (c *Client) QueryProductDetails(ctx context.Context, productIDs []string) <-chan billing.ProductDetailsResult {
	ch := make(chan billing.ProductDetailsResult, 1)

	go func() {
		result, ok := c.precheck(ctx, OperationQueryProductDetails)
		if !ok {
			ch <- billing.ProductDetailsResult{Result: result}
			return
		}

		var details []*billing.ProductDetails
		for _, id := range productIDs {
			product, err := c.catalog.LookupProduct(ctx, id)
			if err == billing.ErrNotFound {
				continue
			} else if err != nil {
				c.log.Warn("Failed to look up product", zap.String("product_id", id), zap.Error(err))
				ch <- billing.ProductDetailsResult{Result: billing.Result{Code: billing.ResponseCodeError, DebugMessage: err.Error()}}
				return
			}
			details = append(details, product)
		}

		ch <- billing.ProductDetailsResult{Result: billing.OK(), Details: details}
	}()

	return ch
}

func (c *Client) LaunchPurchaseFlow(ctx context.Context, params billing.FlowParams) <-chan billing.Result {
	ch := make(chan billing.Result, 1)

	c.mu.Lock()
	c.launches = append(c.launches, params)
	c.mu.Unlock()

	go func() {
		result, ok := c.precheck(ctx, OperationLaunchPurchaseFlow)
		if ok && params.Details == nil {
			result, ok = billing.Result{Code: billing.ResponseCodeDeveloperError, DebugMessage: "missing product details"}, false
		}
		ch <- result

		if ok && c.autoComplete {
			purchase := c.NewPurchase(params.Details.ProductID, params.ObfuscatedAccountID)
			c.log.Debug("Auto-completing purchase", zap.String("product_id", params.Details.ProductID))
			c.CompletePurchase(billing.OK(), purchase)
		}
	}()

	return ch
}

func (c *Client) AcknowledgePurchase(ctx context.Context, purchaseToken string) <-chan billing.Result {
	ch := make(chan billing.Result, 1)

	go func() {
		result, ok := c.precheck(ctx, OperationAcknowledgePurchase)
		if !ok {
			ch <- result
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		c.acknowledged = append(c.acknowledged, purchaseToken)
		for _, p := range c.owned {
			if p.PurchaseToken == purchaseToken {
				p.Acknowledged = true
				ch <- billing.OK()
				return
			}
		}
		ch <- billing.ResultOf(billing.ResponseCodeItemNotOwned)
	}()

	return ch
}

func (c *Client) ConsumePurchase(ctx context.Context, purchaseToken string) <-chan billing.ConsumeResult {
	ch := make(chan billing.ConsumeResult, 1)

	go func() {
		result, ok := c.precheck(ctx, OperationConsumePurchase)
		if !ok {
			ch <- billing.ConsumeResult{Result: result, PurchaseToken: purchaseToken}
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		c.consumed = append(c.consumed, purchaseToken)
		for i, p := range c.owned {
			if p.PurchaseToken == purchaseToken {
				c.owned = append(c.owned[:i], c.owned[i+1:]...)
				ch <- billing.ConsumeResult{Result: billing.OK(), PurchaseToken: purchaseToken}
				return
			}
		}
		ch <- billing.ConsumeResult{Result: billing.ResultOf(billing.ResponseCodeItemNotOwned), PurchaseToken: purchaseToken}
	}()

	return ch
}

func (c *Client) QueryPurchases(ctx context.Context) <-chan billing.PurchasesResult {
	ch := make(chan billing.PurchasesResult, 1)

	go func() {
		result, ok := c.precheck(ctx, OperationQueryPurchases)
		if !ok {
			ch <- billing.PurchasesResult{Result: result}
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		purchases := make([]*billing.Purchase, 0, len(c.owned))
		for _, p := range c.owned {
			purchases = append(purchases, p.Clone())
		}
		ch <- billing.PurchasesResult{Result: billing.OK(), Purchases: purchases}
	}()

	return ch
}
