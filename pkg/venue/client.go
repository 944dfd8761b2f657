package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/outofforest/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/txgateway"
)

// Headers used to authenticate the order.
const (
	HeaderAPIKey     = "X-Api-Key"
	HeaderUID        = "X-Api-Uid"
	HeaderPassphrase = "X-Api-Passphrase"
	HeaderTimestamp  = "X-Api-Timestamp"
	HeaderSignature  = "X-Api-Signature"
)

// Order is the body of the order placement request.
type Order struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// New creates client of the venue exposed at baseURL.
func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		now:     time.Now,
	}
}

// Client places market orders using venue REST API.
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// PlaceMarketOrder sends the order to the venue. Order is acknowledged when venue responds with 2xx status.
func (c *Client) PlaceMarketOrder(ctx context.Context, order txgateway.OrderCommand) (txgateway.OrderAck, error) {
	body, err := json.Marshal(Order{
		Symbol: order.Symbol,
		Side:   string(order.Side),
		Type:   "market",
		Amount: order.Amount,
	})
	if err != nil {
		return txgateway.OrderAck{}, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return txgateway.OrderAck{}, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	sign(req, body, order.Credentials, c.now())

	resp, err := c.client.Do(req)
	if err != nil {
		return txgateway.OrderAck{}, errors.Wrapf(err, "placing order on %q failed", order.Provider)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return txgateway.OrderAck{}, errors.WithStack(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return txgateway.OrderAck{}, errors.Errorf("venue %q rejected order with status %d: %s",
			order.Provider, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	// Venues not returning order id are still acknowledging.
	var decoded orderResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			logger.Get(ctx).Debug("decoding order response failed",
				zap.String("provider", order.Provider), zap.Error(err))
		}
	}

	return txgateway.OrderAck{
		Acknowledged: true,
		OrderID:      decoded.ID,
	}, nil
}

func sign(req *http.Request, body []byte, credentials txgateway.Credentials, now time.Time) {
	if credentials.Key == nil || credentials.Secret == nil {
		return
	}

	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	req.Header.Set(HeaderAPIKey, *credentials.Key)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, Signature(*credentials.Secret, timestamp, body))
	if credentials.ID != nil {
		req.Header.Set(HeaderUID, *credentials.ID)
	}
	if credentials.Password != nil {
		req.Header.Set(HeaderPassphrase, *credentials.Password)
	}
}

// Signature computes signature expected by the venue.
func Signature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
