package use_cases

import (
	"strings"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
)

const (
	tradeLimitSeconds = 900
	offlineExpiryDays = 7
	periodStartType   = "1"
	langType          = "zh-tw"
)

// Callbacks are the merchant URLs the processor posts results to.
type Callbacks struct {
	ReturnURL       string
	NotifyURL       string
	ClientBackURL   string
	PeriodReturnURL string
	PeriodNotifyURL string
}

// mpgFields builds the single-payment envelope in the processor's documented field order.
func mpgFields(orderNo string, req domain.PaymentRequest, cb Callbacks, now time.Time) *newebpay.Form {
	f := newebpay.NewForm().
		Set("MerchantOrderNo", orderNo).
		SetInt("Amt", req.Amount).
		Set("ItemDesc", req.ItemDesc).
		SetInt("TradeLimit", tradeLimitSeconds)

	methods := req.PaymentMethods
	if len(methods) == 0 {
		methods = []domain.PaymentMethod{domain.PaymentMethodCredit}
	}
	for _, m := range methods {
		if m.Offline() {
			f.Set("ExpireDate", now.AddDate(0, 0, offlineExpiryDays).Format("20060102"))
			break
		}
	}

	f.Set("ReturnURL", cb.ReturnURL).
		Set("NotifyURL", cb.NotifyURL).
		Set("ClientBackURL", cb.ClientBackURL).
		Set("Email", req.Email).
		Set("EmailModify", "0").
		Set("LoginType", "0").
		Set("LangType", langType)

	// Method names double as the processor's flag field names.
	for _, m := range methods {
		f.Set(string(m), "1")
	}

	if req.Invoice != nil {
		invoiceFields(f, req.Invoice)
	}
	return f
}

// periodFields builds the periodic mandate envelope. PeriodStartType 1 runs a
// verification authorization whose result is posted to PeriodReturnURL, so the
// first billed period arrives through PeriodNotifyURL.
func periodFields(orderNo, point string, req domain.SubscriptionRequest, cb Callbacks) *newebpay.Form {
	return newebpay.NewForm().
		Set("MerOrderNo", orderNo).
		Set("ProdDesc", req.ItemDesc).
		SetInt("PeriodAmt", req.Amount).
		Set("PeriodType", string(req.PeriodType)).
		Set("PeriodPoint", point).
		Set("PeriodStartType", periodStartType).
		SetInt("PeriodTimes", int64(req.TotalPeriods)).
		Set("PeriodMemo", req.Memo).
		Set("ReturnURL", cb.PeriodReturnURL).
		Set("NotifyURL", cb.PeriodNotifyURL).
		Set("BackURL", cb.ClientBackURL).
		Set("PayerEmail", req.Email).
		Set("EmailModify", "0").
		Set("PaymentInfo", "N").
		Set("OrderInfo", "N")
}

func invoiceFields(f *newebpay.Form, inv *domain.Invoice) {
	taxType := inv.TaxType
	if taxType == "" {
		taxType = "1"
	}
	printFlag := inv.PrintFlag
	if printFlag == "" {
		printFlag = "N"
	}

	f.Set("INVOICE", "1").
		Set("InvType", string(inv.Type)).
		Set("TaxType", taxType).
		Set("ItemName", inv.ItemName).
		Set("ItemCount", inv.ItemCount).
		Set("ItemUnit", inv.ItemUnit).
		Set("ItemPrice", inv.ItemPrice).
		Set("ItemAmt", inv.ItemAmt)

	if inv.Type == domain.InvoiceB2B {
		f.Set("BuyerUBN", inv.BuyerUBN)
	}
	f.Set("BuyerName", inv.BuyerName).
		Set("BuyerEmail", inv.BuyerEmail)
	if inv.CarrierType != "" {
		f.Set("CarrierType", inv.CarrierType).
			Set("CarrierNum", inv.CarrierNum)
	}
	f.Set("LoveCode", inv.LoveCode).
		Set("PrintFlag", printFlag)
}

func joinMethods(methods []domain.PaymentMethod) string {
	if len(methods) == 0 {
		return string(domain.PaymentMethodCredit)
	}
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}
