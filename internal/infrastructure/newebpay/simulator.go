package newebpay

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

// Magic amounts that the simulator declines.
const (
	AmountInsufficientFunds int64 = 4002
	AmountExpiredCard       int64 = 4069
	AmountProcessingError   int64 = 4119
)

type AlterCall struct {
	OrderNo  string
	PeriodNo string
	Alter    domain.AlterType
}

// Simulator stands in for the processor in sandbox mode and tests. It answers
// the server-to-server API and produces signed notifications the way the
// processor would after a browser checkout.
type Simulator struct {
	vault *Vault

	mu     sync.Mutex
	trades map[string]domain.TradeStatus
	alters []AlterCall
	seq    atomic.Uint64
}

func NewSimulator(vault *Vault) *Simulator {
	return &Simulator{
		vault:  vault,
		trades: map[string]domain.TradeStatus{},
	}
}

var _ domain.Gateway = (*Simulator)(nil)

func (s *Simulator) AlterStatus(_ context.Context, orderNo, periodNo string, alter domain.AlterType) error {
	if periodNo == "" {
		return apperrors.ErrGatewayRejected("PER10061 period no is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alters = append(s.alters, AlterCall{OrderNo: orderNo, PeriodNo: periodNo, Alter: alter})
	return nil
}

func (s *Simulator) Alters() []AlterCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AlterCall, len(s.alters))
	copy(out, s.alters)
	return out
}

func (s *Simulator) QueryTradeInfo(_ context.Context, orderNo string, amount int64) (*domain.TradeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok := s.trades[orderNo]
	if !ok {
		return &domain.TradeStatus{MerchantOrderNo: orderNo, Amount: amount, Status: "0"}, nil
	}
	if trade.Amount != amount {
		return nil, apperrors.ErrGatewayRejected("TRA10021 amount does not match order")
	}
	return &trade, nil
}

// SettleMPG completes a single payment and returns the NotifyURL payload.
func (s *Simulator) SettleMPG(payload *EncryptedPayload) (InboundPayload, error) {
	fields, err := s.decryptOutbound(payload)
	if err != nil {
		return InboundPayload{}, err
	}

	orderNo := fields.Get("MerchantOrderNo")
	amount, err := parseAmount(fields.Get("Amt"))
	if err != nil {
		return InboundPayload{}, err
	}

	status, respondCode, message := resolveOutcome(amount)
	tradeNo := s.tradeNo(s.vault.now())
	payTime := s.vault.now().In(taipei)

	result := map[string]any{
		"MerchantID":      s.vault.MerchantID(),
		"Amt":             amount,
		"TradeNo":         tradeNo,
		"MerchantOrderNo": orderNo,
		"PaymentType":     "CREDIT",
		"RespondType":     "JSON",
		"PayTime":         payTime.Format("2006-01-02 15:04:05"),
		"IP":              "127.0.0.1",
		"EscrowBank":      "HNCB",
		"RespondCode":     respondCode,
		"Card4No":         "1111",
	}
	tradeStatus := "2"
	if status == "SUCCESS" {
		result["Auth"] = "930637"
		tradeStatus = "1"
	}

	s.mu.Lock()
	s.trades[orderNo] = domain.TradeStatus{
		MerchantOrderNo: orderNo,
		TradeNo:         tradeNo,
		Amount:          amount,
		Status:          tradeStatus,
		PaymentType:     "CREDIT",
		RespondCode:     respondCode,
		PayTime:         &payTime,
		Message:         message,
	}
	s.mu.Unlock()

	return s.notify(status, message, result), nil
}

// FirstAuthorization answers a periodic mandate with its NotifyURL payload.
func (s *Simulator) FirstAuthorization(payload *EncryptedPayload) (InboundPayload, error) {
	fields, err := s.decryptOutbound(payload)
	if err != nil {
		return InboundPayload{}, err
	}

	amount, err := parseAmount(fields.Get("PeriodAmt"))
	if err != nil {
		return InboundPayload{}, err
	}
	status, respondCode, message := resolveOutcome(amount)
	now := s.vault.now().In(taipei)

	result := map[string]any{
		"MerchantID":      s.vault.MerchantID(),
		"MerchantOrderNo": fields.Get("MerOrderNo"),
		"PeriodType":      fields.Get("PeriodType"),
		"AuthTimes":       fields.Get("PeriodTimes"),
		"AuthTime":        now.Format("20060102150405"),
		"PeriodAmt":       amount,
		"TradeNo":         s.tradeNo(now),
		"RespondCode":     respondCode,
	}
	if status == "SUCCESS" {
		result["PeriodNo"] = "P" + s.tradeNo(now)
		result["AuthCode"] = "123456"
		result["NextAuthDate"] = now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	return s.notify(status, message, result), nil
}

// PeriodAuthorization produces the PeriodNotifyURL payload for one billing cycle.
func (s *Simulator) PeriodAuthorization(orderNo, periodNo string, amount int64, already, total int, succeed bool) InboundPayload {
	status, message := "SUCCESS", "授權成功"
	respondCode := "00"
	if !succeed {
		status, message, respondCode = "TRA20001", "authorization declined", "05"
	}
	now := s.vault.now().In(taipei)

	result := map[string]any{
		"MerchantID":      s.vault.MerchantID(),
		"MerchantOrderNo": orderNo,
		"OrderNo":         orderNo + "_" + strconv.Itoa(already),
		"TradeNo":         s.tradeNo(now),
		"AuthDate":        now.Format("2006-01-02 15:04:05"),
		"TotalTimes":      total,
		"AlreadyTimes":    already,
		"AuthAmt":         amount,
		"PeriodNo":        periodNo,
		"RespondCode":     respondCode,
	}
	if succeed {
		result["AuthCode"] = "654321"
	}
	if already < total {
		result["NextAuthDate"] = now.AddDate(0, 1, 0).Format("2006-01-02")
	}
	return s.notify(status, message, result)
}

func (s *Simulator) notify(status, message string, result map[string]any) InboundPayload {
	body, _ := json.Marshal(map[string]any{
		"Status":  status,
		"Message": message,
		"Result":  result,
	})
	cipherHex := s.vault.Encrypt(string(body))
	return InboundPayload{
		Status:     status,
		MerchantID: s.vault.MerchantID(),
		TradeInfo:  cipherHex,
		TradeSha:   s.vault.Sign(cipherHex),
		Version:    s.vault.version,
	}
}

func (s *Simulator) decryptOutbound(p *EncryptedPayload) (*Form, error) {
	if p == nil || p.MerchantID != s.vault.MerchantID() {
		return nil, errors.New("MPG02003 merchant id mismatch")
	}
	if p.TradeSha != s.vault.Sign(p.TradeInfo) {
		return nil, errors.New("MPG03009 TradeSha mismatch")
	}
	plain, err := s.vault.Decrypt(p.TradeInfo)
	if err != nil {
		return nil, err
	}
	return ParseForm(plain)
}

func resolveOutcome(amount int64) (status, respondCode, message string) {
	switch amount {
	case AmountInsufficientFunds:
		return "TRA10036", "51", "insufficient funds"
	case AmountExpiredCard:
		return "TRA10037", "54", "expired card"
	case AmountProcessingError:
		return "TRA10038", "96", "processing error"
	default:
		return "SUCCESS", "00", "授權成功"
	}
}

// tradeNo is the base36 millisecond timestamp followed by a per-simulator sequence.
func (s *Simulator) tradeNo(now time.Time) string {
	return strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36) + "T" + strconv.FormatUint(s.seq.Add(1), 36))
}
