package shops

// Fee is one platform fee line from the shop config. CurrencyCode "%" means
// Value is a percentage of the payment due; anything else is a flat amount.
type Fee struct {
	Value        float64 `dynamodbav:"value" json:"value"`
	CurrencyCode string  `dynamodbav:"currency_code" json:"currency_code"`
}

// Config is the per-merchant configuration stored in the shop config table.
type Config struct {
	Shop         string `dynamodbav:"shop" json:"shop"` // PK, the shopify domain
	ShopifyToken string `dynamodbav:"shopify_token" json:"-"`
	BrandEmail   string `dynamodbav:"brand_email,omitempty" json:"brand_email,omitempty"`
	PlatformFees []Fee  `dynamodbav:"platform_fees,omitempty" json:"platform_fees,omitempty"`
}

// AppKeys are the Shopify app credentials of a shop, kept in Secrets Manager.
type AppKeys struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	BrandEmail string `json:"brand_email,omitempty"`
	// BrandEmailLegacy is the older spelling some secrets still carry.
	BrandEmailLegacy string `json:"brandemail,omitempty"`
}
