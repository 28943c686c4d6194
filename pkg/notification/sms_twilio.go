package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Lakshin-amin/RakshaNet/pkg/errors"
)

type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioClient 便于替换/注入的发送接口（适配真实 REST API）
type TwilioClient interface {
	Send(ctx context.Context, from, to, body string) error
}

type TwilioSMS struct {
	cfg TwilioConfig
	cli TwilioClient
}

func NewTwilioSMS(cfg TwilioConfig, cli TwilioClient) *TwilioSMS {
	if cli == nil {
		cli = &restClient{cfg: cfg, http: http.DefaultClient}
	}
	return &TwilioSMS{cfg: cfg, cli: cli}
}

// SendAlert 向单个联系人号码发送告警短信
func (t *TwilioSMS) SendAlert(ctx context.Context, phone, message string) error {
	if !t.cfg.Enabled {
		return nil
	}
	if err := t.cli.Send(ctx, t.cfg.FromNumber, phone, message); err != nil {
		return errors.WrapWithCode(errors.CodeDelivery, err, "send alert sms failed")
	}
	return nil
}

// restClient Twilio Messages REST API 实现
type restClient struct {
	cfg  TwilioConfig
	http *http.Client
}

func (c *restClient) Send(ctx context.Context, from, to, body string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.cfg.AccountSID)
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return fmt.Errorf("twilio: %s", apiErr.Message)
	}
	return nil
}
