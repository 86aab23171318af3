package gateway

import (
	"encoding/xml"
	"net/http"
)

// Wechat posts an XML envelope and expects an XML return_code envelope
// back.
type Wechat struct{}

func (w *Wechat) Name() string { return "wechat" }

// TODO: verify the sign field (MD5/HMAC-SHA256 over the sorted params)
// once the merchant key is wired into config.
func (w *Wechat) Verify(r *http.Request, body []byte) bool { return true }

type wechatNotify struct {
	XMLName    xml.Name `xml:"xml"`
	ReturnCode string   `xml:"return_code"`
	ResultCode string   `xml:"result_code"`
	OutTradeNo string   `xml:"out_trade_no"`
}

func (w *Wechat) Normalize(body []byte) (PaymentEvent, error) {
	var n wechatNotify
	if err := xml.Unmarshal(body, &n); err != nil {
		return PaymentEvent{}, ErrParse
	}
	if n.OutTradeNo == "" {
		return PaymentEvent{}, ErrParse
	}
	paid := n.ReturnCode == "SUCCESS" && n.ResultCode == "SUCCESS"
	return PaymentEvent{TradeNo: n.OutTradeNo, Paid: paid}, nil
}

const (
	wechatAckOK   = "<xml><return_code><![CDATA[SUCCESS]]></return_code><return_msg><![CDATA[OK]]></return_msg></xml>"
	wechatAckFail = "<xml><return_code><![CDATA[FAIL]]></return_code><return_msg><![CDATA[ERROR]]></return_msg></xml>"
)

func (w *Wechat) Acknowledge(o Outcome) Ack {
	if o == OutcomeProcessed {
		return Ack{StatusCode: http.StatusOK, ContentType: "application/xml", Body: wechatAckOK}
	}
	return Ack{StatusCode: http.StatusInternalServerError, ContentType: "application/xml", Body: wechatAckFail}
}
