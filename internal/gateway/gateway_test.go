package gateway

import (
	"errors"
	"net/http"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"alipay", "alipay"},
		{"alipay_f2f", "alipay"},
		{"wechat", "wechat"},
		{"WECHAT-native", "wechat"},
		{"stripe", "stripe"},
		{"unknown-psp", "unknown-psp"},
	}
	for _, c := range cases {
		got := Resolve(c.name)
		if got.Name() != c.want {
			t.Errorf("Resolve(%q).Name() = %q, want %q", c.name, got.Name(), c.want)
		}
	}
}

func TestGenericNormalize(t *testing.T) {
	g := &Generic{}

	cases := []struct {
		body    string
		tradeNo string
		paid    bool
	}{
		{`{"order_id":"T1","status":"paid"}`, "T1", true},
		{`{"out_trade_no":"T2","status":"succeeded"}`, "T2", true},
		{`{"order_id":"T3","trade_status":"TRADE_SUCCESS"}`, "T3", true},
		{`{"order_id":"T4","payment_status":"COMPLETED"}`, "T4", true},
		{`{"order_id":"T5","status":"created"}`, "T5", false},
		{`{"order_id":"T6","status":"cancelled"}`, "T6", false},
	}
	for _, c := range cases {
		ev, err := g.Normalize([]byte(c.body))
		if err != nil {
			t.Fatalf("Normalize(%s): %v", c.body, err)
		}
		if ev.TradeNo != c.tradeNo || ev.Paid != c.paid {
			t.Errorf("Normalize(%s) = %+v, want trade_no=%s paid=%v", c.body, ev, c.tradeNo, c.paid)
		}
	}
}

func TestGenericNormalize_ParseErrors(t *testing.T) {
	g := &Generic{}
	for _, body := range []string{`not json`, `{}`, `{"status":"paid"}`} {
		if _, err := g.Normalize([]byte(body)); !errors.Is(err, ErrParse) {
			t.Errorf("Normalize(%q): expected ErrParse, got %v", body, err)
		}
	}
}

func TestAlipayNormalize(t *testing.T) {
	a := &Alipay{}

	ev, err := a.Normalize([]byte("out_trade_no=A1&trade_status=TRADE_SUCCESS&total_amount=50.00"))
	if err != nil {
		t.Fatal(err)
	}
	if ev.TradeNo != "A1" || !ev.Paid {
		t.Errorf("unexpected event: %+v", ev)
	}

	ev, err = a.Normalize([]byte("out_trade_no=A2&trade_status=WAIT_BUYER_PAY"))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Paid {
		t.Error("WAIT_BUYER_PAY must not be paid")
	}

	if _, err := a.Normalize([]byte("trade_status=TRADE_SUCCESS")); !errors.Is(err, ErrParse) {
		t.Errorf("missing out_trade_no: expected ErrParse, got %v", err)
	}
}

func TestWechatNormalize(t *testing.T) {
	w := &Wechat{}

	body := "<xml><return_code>SUCCESS</return_code><result_code>SUCCESS</result_code><out_trade_no>W1</out_trade_no></xml>"
	ev, err := w.Normalize([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if ev.TradeNo != "W1" || !ev.Paid {
		t.Errorf("unexpected event: %+v", ev)
	}

	body = "<xml><return_code>SUCCESS</return_code><result_code>FAIL</result_code><out_trade_no>W2</out_trade_no></xml>"
	ev, err = w.Normalize([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Paid {
		t.Error("result_code FAIL must not be paid")
	}

	if _, err := w.Normalize([]byte("{json}")); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestAcknowledgments(t *testing.T) {
	cases := []struct {
		adapter Adapter
		outcome Outcome
		status  int
		body    string
	}{
		{&Alipay{}, OutcomeProcessed, http.StatusOK, "success"},
		{&Alipay{}, OutcomeRejected, http.StatusInternalServerError, "fail"},
		{&Wechat{}, OutcomeProcessed, http.StatusOK, wechatAckOK},
		{&Wechat{}, OutcomeRejected, http.StatusInternalServerError, wechatAckFail},
		{&Generic{}, OutcomeProcessed, http.StatusOK, "SUCCESS"},
		{&Generic{}, OutcomeRejected, http.StatusInternalServerError, "FAILURE"},
	}
	for _, c := range cases {
		ack := c.adapter.Acknowledge(c.outcome)
		if ack.StatusCode != c.status || ack.Body != c.body {
			t.Errorf("%s/%d: got (%d, %q), want (%d, %q)",
				c.adapter.Name(), c.outcome, ack.StatusCode, ack.Body, c.status, c.body)
		}
	}
}

func TestVerifyWeakDefault(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "/notify/x", nil)
	for _, a := range []Adapter{&Generic{}, &Alipay{}, &Wechat{}} {
		if !a.Verify(req, nil) {
			t.Errorf("%s: weak-default Verify must pass", a.Name())
		}
	}
}
