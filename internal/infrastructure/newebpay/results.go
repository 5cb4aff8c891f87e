package newebpay

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var taipei = time.FixedZone("CST", 8*60*60)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-0215:04:05",
	"20060102150405",
	"2006-01-02",
	"20060102",
}

type MPGResult struct {
	MerchantOrderNo string
	TradeNo         string
	Amount          int64
	PaymentType     string
	RespondCode     string
	AuthCode        string
	Card4No         string
	PayTime         *time.Time
	Succeeded       bool
	Message         string
}

type PeriodResult struct {
	MerchantOrderNo string
	PeriodNo        string
	TradeNo         string
	AuthCode        string
	RespondCode     string
	Amount          int64
	AlreadyTimes    int
	TotalTimes      int
	AuthDate        *time.Time
	NextAuthDate    *time.Time
	Succeeded       bool
	Message         string
}

func (n *Notification) MPGResult() (*MPGResult, error) {
	orderNo := n.Get("MerchantOrderNo")
	if orderNo == "" {
		return nil, errors.New("notification has no MerchantOrderNo")
	}
	amount, err := parseAmount(n.Get("Amt"))
	if err != nil {
		return nil, err
	}

	return &MPGResult{
		MerchantOrderNo: orderNo,
		TradeNo:         n.Get("TradeNo"),
		Amount:          amount,
		PaymentType:     n.Get("PaymentType"),
		RespondCode:     n.Get("RespondCode"),
		AuthCode:        n.Get("Auth"),
		Card4No:         n.Get("Card4No"),
		PayTime:         parseTime(n.Get("PayTime")),
		Succeeded:       n.Succeeded(),
		Message:         n.Message,
	}, nil
}

// PeriodResult reads both the first-authorization and the per-period shapes.
func (n *Notification) PeriodResult() (*PeriodResult, error) {
	orderNo := firstOf(n, "MerchantOrderNo", "MerOrderNo")
	if orderNo == "" {
		return nil, errors.New("notification has no MerchantOrderNo")
	}

	amount, err := parseAmount(firstOf(n, "AuthAmt", "PeriodAmt", "Amt"))
	if err != nil {
		return nil, err
	}

	return &PeriodResult{
		MerchantOrderNo: orderNo,
		PeriodNo:        n.Get("PeriodNo"),
		TradeNo:         n.Get("TradeNo"),
		AuthCode:        n.Get("AuthCode"),
		RespondCode:     n.Get("RespondCode"),
		Amount:          amount,
		AlreadyTimes:    atoiOrZero(n.Get("AlreadyTimes")),
		TotalTimes:      atoiOrZero(firstOf(n, "TotalTimes", "AuthTimes", "PeriodTimes")),
		AuthDate:        parseTime(firstOf(n, "AuthDate", "AuthTime")),
		NextAuthDate:    parseTime(n.Get("NextAuthDate")),
		Succeeded:       n.Succeeded(),
		Message:         n.Message,
	}, nil
}

func firstOf(n *Notification, keys ...string) string {
	for _, k := range keys {
		if v := n.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, errors.New("amount is not an integer: " + s)
		}
		return int64(f), nil
	}
	return amount, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, taipei); err == nil {
			return &t
		}
	}
	return nil
}
