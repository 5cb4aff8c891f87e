package domain

import (
	"time"

	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCredit     PaymentMethod = "CREDIT"
	PaymentMethodVACC       PaymentMethod = "VACC"
	PaymentMethodWebATM     PaymentMethod = "WEBATM"
	PaymentMethodCVS        PaymentMethod = "CVS"
	PaymentMethodBarcode    PaymentMethod = "BARCODE"
	PaymentMethodAndroidPay PaymentMethod = "ANDROIDPAY"
	PaymentMethodSamsungPay PaymentMethod = "SAMSUNGPAY"
	PaymentMethodLinePay    PaymentMethod = "LINEPAY"
	PaymentMethodEsunWallet PaymentMethod = "ESUNWALLET"
	PaymentMethodTaiwanPay  PaymentMethod = "TAIWANPAY"
)

var ValidPaymentMethods = map[PaymentMethod]bool{
	PaymentMethodCredit:     true,
	PaymentMethodVACC:       true,
	PaymentMethodWebATM:     true,
	PaymentMethodCVS:        true,
	PaymentMethodBarcode:    true,
	PaymentMethodAndroidPay: true,
	PaymentMethodSamsungPay: true,
	PaymentMethodLinePay:    true,
	PaymentMethodEsunWallet: true,
	PaymentMethodTaiwanPay:  true,
}

// Offline methods settle after the browser session ends and need an ExpireDate.
func (m PaymentMethod) Offline() bool {
	return m == PaymentMethodVACC || m == PaymentMethodCVS || m == PaymentMethodBarcode
}

type PeriodType string

const (
	PeriodDaily   PeriodType = "D"
	PeriodWeekly  PeriodType = "W"
	PeriodMonthly PeriodType = "M"
	PeriodYearly  PeriodType = "Y"
)

type SubscriptionState string

const (
	SubscriptionPending   SubscriptionState = "PENDING"
	SubscriptionActive    SubscriptionState = "ACTIVE"
	SubscriptionPastDue   SubscriptionState = "PAST_DUE"
	SubscriptionSuspended SubscriptionState = "SUSPENDED"
	SubscriptionCancelled SubscriptionState = "CANCELLED"
	SubscriptionExpired   SubscriptionState = "EXPIRED"
)

func (s SubscriptionState) Terminal() bool {
	return s == SubscriptionCancelled || s == SubscriptionExpired
}

type IdempotencyStatus string

const (
	IdempotencyStatusPending    IdempotencyStatus = "PENDING"
	IdempotencyStatusProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyStatusCompleted  IdempotencyStatus = "COMPLETED"
	IdempotencyStatusFailed     IdempotencyStatus = "FAILED"
)

type RequestType string

const (
	RequestTypeMPG             RequestType = "MPG"
	RequestTypePeriod          RequestType = "PERIOD"
	RequestTypeMPGNotify       RequestType = "MPG_NOTIFY"
	RequestTypePeriodFirstAuth RequestType = "PERIOD_FIRST_AUTH"
	RequestTypePeriodNotify    RequestType = "PERIOD_NOTIFY"
)

// Creates reports whether the request type submits a new order to the processor.
func (t RequestType) Creates() bool {
	return t == RequestTypeMPG || t == RequestTypePeriod
}

type InvoiceType string

const (
	InvoiceB2B InvoiceType = "B2B"
	InvoiceB2C InvoiceType = "B2C"
)

type Invoice struct {
	Type        InvoiceType `json:"type"`
	TaxType     string      `json:"tax_type,omitempty"`
	ItemName    string      `json:"item_name"`
	ItemCount   string      `json:"item_count"`
	ItemUnit    string      `json:"item_unit"`
	ItemPrice   string      `json:"item_price"`
	ItemAmt     string      `json:"item_amt"`
	BuyerUBN    string      `json:"buyer_ubn,omitempty"`
	BuyerName   string      `json:"buyer_name,omitempty"`
	BuyerEmail  string      `json:"buyer_email,omitempty"`
	CarrierType string      `json:"carrier_type,omitempty"`
	CarrierNum  string      `json:"carrier_num,omitempty"`
	LoveCode    string      `json:"love_code,omitempty"`
	PrintFlag   string      `json:"print_flag,omitempty"`
}

type PaymentRequest struct {
	MerchantOrderNo string          `json:"merchant_order_no,omitempty"`
	Amount          int64           `json:"amount"`
	ItemDesc        string          `json:"item_desc"`
	Email           string          `json:"email"`
	PaymentMethods  []PaymentMethod `json:"payment_methods,omitempty"`
	Invoice         *Invoice        `json:"invoice,omitempty"`
}

type SubscriptionRequest struct {
	MerchantOrderNo string     `json:"merchant_order_no,omitempty"`
	Amount          int64      `json:"amount"`
	ItemDesc        string     `json:"item_desc"`
	Email           string     `json:"email"`
	PeriodType      PeriodType `json:"period_type"`
	PeriodPoint     string     `json:"period_point"`
	TotalPeriods    int        `json:"total_periods"`
	Memo            string     `json:"memo,omitempty"`
}

type Order struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MerchantOrderNo  string         `json:"merchant_order_no" gorm:"type:varchar(30);uniqueIndex;not null"`
	UserID           string         `json:"user_id" gorm:"type:varchar(100);index;not null"`
	Amount           int64          `json:"amount" gorm:"not null"`
	ItemDesc         string         `json:"item_desc" gorm:"type:varchar(50);not null"`
	Email            string         `json:"email" gorm:"type:varchar(255);not null"`
	PaymentMethods   string         `json:"payment_methods" gorm:"type:varchar(255)"`
	Status           OrderStatus    `json:"status" gorm:"type:varchar(20);not null"`
	TradeNo          string         `json:"trade_no,omitempty" gorm:"type:varchar(30)"`
	PaymentType      string         `json:"payment_type,omitempty" gorm:"type:varchar(20)"`
	AuthCode         string         `json:"auth_code,omitempty" gorm:"type:varchar(10)"`
	FailReason       string         `json:"fail_reason,omitempty" gorm:"type:text"`
	InvoiceRequested bool           `json:"invoice_requested"`
	RawResult        datatypes.JSON `json:"-"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

type Subscription struct {
	ID               string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID           string            `json:"user_id" gorm:"type:varchar(100);index;not null"`
	MerchantOrderNo  string            `json:"merchant_order_no" gorm:"type:varchar(30);uniqueIndex;not null"`
	PeriodNo         string            `json:"period_no,omitempty" gorm:"type:varchar(30);index"`
	PeriodType       PeriodType        `json:"period_type" gorm:"type:varchar(1);not null"`
	PeriodPoint      string            `json:"period_point" gorm:"type:varchar(4)"`
	Amount           int64             `json:"amount" gorm:"not null"`
	ItemDesc         string            `json:"item_desc" gorm:"type:varchar(50);not null"`
	Email            string            `json:"email" gorm:"type:varchar(255);not null"`
	TotalPeriods     int               `json:"total_periods" gorm:"not null"`
	CompletedPeriods int               `json:"completed_periods" gorm:"not null;default:0"`
	FailedAttempts   int               `json:"failed_attempts" gorm:"not null;default:0"`
	State            SubscriptionState `json:"state" gorm:"type:varchar(20);index;not null"`
	NextAuthDate     *time.Time        `json:"next_auth_date,omitempty"`
	LastAuthDate     *time.Time        `json:"last_auth_date,omitempty"`
	LastAuthStatus   string            `json:"last_auth_status,omitempty" gorm:"type:varchar(20)"`
	CancelReason     string            `json:"cancel_reason,omitempty" gorm:"type:text"`
	Version          int               `json:"-" gorm:"not null;default:0"`
	CreatedAt        time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

type SubscriptionPayment struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SubscriptionID string         `json:"subscription_id" gorm:"type:varchar(36);index;not null"`
	PeriodNo       string         `json:"period_no" gorm:"type:varchar(30);not null"`
	PeriodTimes    int            `json:"period_times" gorm:"not null"`
	Amount         int64          `json:"amount"`
	Succeeded      bool           `json:"succeeded"`
	TradeNo        string         `json:"trade_no,omitempty" gorm:"type:varchar(30)"`
	AuthCode       string         `json:"auth_code,omitempty" gorm:"type:varchar(10)"`
	RespondCode    string         `json:"respond_code,omitempty" gorm:"type:varchar(10)"`
	Message        string         `json:"message,omitempty" gorm:"type:text"`
	AuthDate       *time.Time     `json:"auth_date,omitempty"`
	RawResult      datatypes.JSON `json:"-"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

type SubscriptionStateLog struct {
	ID             string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SubscriptionID string            `json:"subscription_id" gorm:"type:varchar(36);index;not null"`
	FromState      SubscriptionState `json:"from_state" gorm:"type:varchar(20);not null"`
	ToState        SubscriptionState `json:"to_state" gorm:"type:varchar(20);not null"`
	Event          string            `json:"event" gorm:"type:varchar(32);not null"`
	Detail         string            `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

type IdempotencyRecord struct {
	DedupKey         string            `json:"dedup_key" gorm:"primaryKey;type:varchar(191)"`
	ReservationToken string            `json:"-" gorm:"type:varchar(36);uniqueIndex;not null"`
	RequestType      RequestType       `json:"request_type" gorm:"type:varchar(20);not null"`
	MerchantOrderNo  string            `json:"merchant_order_no" gorm:"type:varchar(30);index"`
	OrderScope       *string           `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	RequestHash      string            `json:"request_hash" gorm:"type:varchar(64);not null"`
	Amount           int64             `json:"amount"`
	Status           IdempotencyStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	ResponseBody     datatypes.JSON    `json:"response_body,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty" gorm:"type:text"`
	LockedAt         *time.Time        `json:"locked_at,omitempty" gorm:"index"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ExpiresAt        time.Time         `json:"expires_at" gorm:"index;not null"`
}

type RateLimitWindow struct {
	Identifier    string    `json:"identifier" gorm:"primaryKey;type:varchar(128)"`
	Endpoint      string    `json:"endpoint" gorm:"primaryKey;type:varchar(32)"`
	Count         int       `json:"count" gorm:"not null"`
	WindowResetAt time.Time `json:"window_reset_at" gorm:"index;not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type WebhookLog struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Channel         string         `json:"channel" gorm:"type:varchar(32);index;not null"`
	SourceIP        string         `json:"source_ip" gorm:"type:varchar(64)"`
	MerchantOrderNo string         `json:"merchant_order_no,omitempty" gorm:"type:varchar(30);index"`
	Status          string         `json:"status,omitempty" gorm:"type:varchar(32)"`
	IsValid         bool           `json:"is_valid"`
	Reason          string         `json:"reason,omitempty" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (Order) TableName() string {
	return "orders"
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (SubscriptionPayment) TableName() string {
	return "subscription_payments"
}

func (SubscriptionStateLog) TableName() string {
	return "subscription_state_logs"
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}

func (RateLimitWindow) TableName() string {
	return "rate_limit_windows"
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}
