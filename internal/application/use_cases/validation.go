package use_cases

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
)

const (
	minAmount          = 1
	maxAmount          = 10_000_000
	maxItemDescLength  = 50
	maxTotalPeriods    = 999
	maxClientKeyLength = 64
)

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	orderNoPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	ubnPattern     = regexp.MustCompile(`^\d{8}$`)
	mmddPattern    = regexp.MustCompile(`^\d{4}$`)
)

func validateClientKey(key string) error {
	if len(key) > maxClientKeyLength {
		return apperrors.ErrIdempotencyKeyTooLong()
	}
	return nil
}

func validateOrderNo(orderNo string) error {
	if orderNo == "" {
		return nil
	}
	if len(orderNo) > newebpay.MaxOrderNoLength {
		return fmt.Errorf("merchant_order_no must be at most %d characters", newebpay.MaxOrderNoLength)
	}
	if !orderNoPattern.MatchString(orderNo) {
		return errors.New("merchant_order_no may only contain letters, digits and underscores")
	}
	return nil
}

func validateCommon(amount int64, itemDesc, email string) error {
	if amount < minAmount {
		return errors.New("amount must be greater than 0")
	}
	if amount > maxAmount {
		return fmt.Errorf("amount must not exceed %d", maxAmount)
	}
	if itemDesc == "" {
		return errors.New("item_desc is required")
	}
	if utf8.RuneCountInString(itemDesc) > maxItemDescLength {
		return fmt.Errorf("item_desc must be at most %d characters", maxItemDescLength)
	}
	if !emailPattern.MatchString(email) {
		return errors.New("email is not valid")
	}
	return nil
}

func validatePaymentRequest(req domain.PaymentRequest) error {
	if err := validateOrderNo(req.MerchantOrderNo); err != nil {
		return apperrors.ErrInvalidPaymentRequest(err.Error())
	}
	if err := validateCommon(req.Amount, req.ItemDesc, req.Email); err != nil {
		return apperrors.ErrInvalidPaymentRequest(err.Error())
	}
	for _, m := range req.PaymentMethods {
		if !domain.ValidPaymentMethods[m] {
			return apperrors.ErrInvalidPaymentRequest(fmt.Sprintf("unsupported payment method %q", m))
		}
	}
	if req.Invoice != nil {
		if err := validateInvoice(req.Invoice); err != nil {
			return apperrors.ErrInvalidPaymentRequest(err.Error())
		}
	}
	return nil
}

func validateSubscriptionRequest(req domain.SubscriptionRequest) error {
	if err := validateOrderNo(req.MerchantOrderNo); err != nil {
		return apperrors.ErrInvalidSubscriptionRequest(err.Error())
	}
	if err := validateCommon(req.Amount, req.ItemDesc, req.Email); err != nil {
		return apperrors.ErrInvalidSubscriptionRequest(err.Error())
	}
	if _, err := normalizePeriodPoint(req.PeriodType, req.PeriodPoint); err != nil {
		return apperrors.ErrInvalidSubscriptionRequest(err.Error())
	}
	if req.TotalPeriods < 1 || req.TotalPeriods > maxTotalPeriods {
		return apperrors.ErrInvalidSubscriptionRequest(fmt.Sprintf("total_periods must be between 1 and %d", maxTotalPeriods))
	}
	return nil
}

// normalizePeriodPoint returns the point in the form the processor expects.
func normalizePeriodPoint(t domain.PeriodType, point string) (string, error) {
	switch t {
	case domain.PeriodDaily:
		n, err := strconv.Atoi(point)
		if err != nil || n < 2 || n > 999 {
			return "", errors.New("period_point for D must be an interval of 2-999 days")
		}
		return strconv.Itoa(n), nil
	case domain.PeriodWeekly:
		n, err := strconv.Atoi(point)
		if err != nil || n < 1 || n > 7 {
			return "", errors.New("period_point for W must be 1-7")
		}
		return strconv.Itoa(n), nil
	case domain.PeriodMonthly:
		n, err := strconv.Atoi(point)
		if err != nil || n < 1 || n > 31 {
			return "", errors.New("period_point for M must be 01-31")
		}
		return fmt.Sprintf("%02d", n), nil
	case domain.PeriodYearly:
		if !mmddPattern.MatchString(point) {
			return "", errors.New("period_point for Y must be MMDD")
		}
		month, _ := strconv.Atoi(point[:2])
		day, _ := strconv.Atoi(point[2:])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return "", errors.New("period_point for Y is not a valid date")
		}
		return point, nil
	default:
		return "", errors.New("period_type must be one of D, W, M, Y")
	}
}

func validateInvoice(inv *domain.Invoice) error {
	switch inv.Type {
	case domain.InvoiceB2C:
	case domain.InvoiceB2B:
		if !ubnPattern.MatchString(inv.BuyerUBN) {
			return errors.New("invoice.buyer_ubn must be 8 digits for B2B invoices")
		}
	default:
		return errors.New("invoice.type must be B2B or B2C")
	}

	required := []struct {
		name  string
		value string
	}{
		{"item_name", inv.ItemName},
		{"item_count", inv.ItemCount},
		{"item_unit", inv.ItemUnit},
		{"item_price", inv.ItemPrice},
		{"item_amt", inv.ItemAmt},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("invoice.%s is required", f.name)
		}
	}
	if inv.BuyerEmail != "" && !emailPattern.MatchString(inv.BuyerEmail) {
		return errors.New("invoice.buyer_email is not valid")
	}
	return nil
}
