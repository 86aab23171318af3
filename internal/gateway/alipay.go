package gateway

import (
	"net/http"
	"net/url"
)

// Alipay posts form-encoded notifications and expects a literal "success"
// body in return; anything else is redelivered.
type Alipay struct{}

func (a *Alipay) Name() string { return "alipay" }

// TODO: verify the RSA2 sign field against the configured public key.
// Until then origin is trusted, same as the other variants.
func (a *Alipay) Verify(r *http.Request, body []byte) bool { return true }

func (a *Alipay) Normalize(body []byte) (PaymentEvent, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return PaymentEvent{}, ErrParse
	}
	tradeNo := vals.Get("out_trade_no")
	if tradeNo == "" {
		return PaymentEvent{}, ErrParse
	}
	status := vals.Get("trade_status")
	paid := status == "TRADE_SUCCESS" || status == "TRADE_FINISHED"
	return PaymentEvent{TradeNo: tradeNo, Paid: paid}, nil
}

func (a *Alipay) Acknowledge(o Outcome) Ack {
	if o == OutcomeProcessed {
		return Ack{StatusCode: http.StatusOK, ContentType: "text/plain", Body: "success"}
	}
	return Ack{StatusCode: http.StatusInternalServerError, ContentType: "text/plain", Body: "fail"}
}
