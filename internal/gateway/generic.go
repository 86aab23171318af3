package gateway

import (
	"encoding/json"
	"net/http"
)

// Generic handles gateways without a dedicated variant. It assumes a JSON
// body and recognizes the common confirmation markers.
type Generic struct {
	GatewayName string
}

func (g *Generic) Name() string {
	if g.GatewayName == "" {
		return "generic"
	}
	return g.GatewayName
}

// Verify always passes; generic gateways carry no known signature scheme.
func (g *Generic) Verify(r *http.Request, body []byte) bool { return true }

type genericPayload struct {
	OrderID       string `json:"order_id"`
	OutTradeNo    string `json:"out_trade_no"`
	Status        string `json:"status"`
	TradeStatus   string `json:"trade_status"`
	PaymentStatus string `json:"payment_status"`
}

func (g *Generic) Normalize(body []byte) (PaymentEvent, error) {
	var p genericPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return PaymentEvent{}, ErrParse
	}
	tradeNo := p.OrderID
	if tradeNo == "" {
		tradeNo = p.OutTradeNo
	}
	if tradeNo == "" {
		return PaymentEvent{}, ErrParse
	}
	paid := p.Status == "paid" || p.Status == "succeeded" ||
		p.TradeStatus == "TRADE_SUCCESS" || p.PaymentStatus == "COMPLETED"
	return PaymentEvent{TradeNo: tradeNo, Paid: paid}, nil
}

func (g *Generic) Acknowledge(o Outcome) Ack {
	if o == OutcomeProcessed {
		return Ack{StatusCode: http.StatusOK, ContentType: "text/plain", Body: "SUCCESS"}
	}
	return Ack{StatusCode: http.StatusInternalServerError, ContentType: "text/plain", Body: "FAILURE"}
}
