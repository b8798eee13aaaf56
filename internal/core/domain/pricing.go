package domain

// Plan is one coaching plan sold through a hosted payment link.
type Plan struct {
	Key          string   `yaml:"key" json:"key"`
	Name         string   `yaml:"name" json:"name"`
	MonthlyPrice int      `yaml:"monthly_price" json:"monthly_price"`
	Description  string   `yaml:"description" json:"description"`
	PaymentLink  string   `yaml:"payment_link" json:"payment_link"`
	Features     []string `yaml:"features" json:"features"`
}

// Period is a prepaid billing period with its discount in percent.
type Period struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Months   int    `yaml:"months" json:"months"`
	Discount int    `yaml:"discount" json:"discount"`
}

// DiscountType is how a code reduces the price.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountCode is a promotional code.
type DiscountCode struct {
	Code        string       `yaml:"code" json:"code"`
	Type        DiscountType `yaml:"type" json:"type"`
	Value       int          `yaml:"value" json:"value"`
	Description string       `yaml:"description" json:"description"`
}

// Catalog is the full pricing configuration.
type Catalog struct {
	Currency      string         `yaml:"currency" json:"currency"`
	Plans         []Plan         `yaml:"plans" json:"plans"`
	Periods       []Period       `yaml:"periods" json:"periods"`
	DiscountCodes []DiscountCode `yaml:"discount_codes" json:"-"`
}

// Quote is the computed display price of a plan for a period and optional code.
type Quote struct {
	PlanKey                string `json:"plan_key"`
	Period                 string `json:"period"`
	Months                 int    `json:"months"`
	DiscountPercentage     int    `json:"discount_percentage"`
	DiscountCode           string `json:"discount_code,omitempty"`
	OriginalMonthlyPrice   int    `json:"original_monthly_price"`
	DiscountedMonthlyPrice int    `json:"discounted_monthly_price"`
	TotalPrice             int    `json:"total_price"`
	OriginalTotalPrice     int    `json:"original_total_price"`
	TotalSavings           int    `json:"total_savings"`
	MonthlySavings         int    `json:"monthly_savings"`
	Currency               string `json:"currency"`
}

// ActiveDiscount is the code a visitor applied, as kept in the local store.
type ActiveDiscount struct {
	Code        string       `json:"code"`
	Type        DiscountType `json:"type"`
	Value       int          `json:"value"`
	Description string       `json:"description"`
}
