package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/macworld/concierge/internal/relay"
)

// RelayClient posts appointment requests to the email-notification
// endpoint.
type RelayClient struct {
	endpoint string
	client   *http.Client
}

// NewRelayClient creates a client for the given endpoint URL.
func NewRelayClient(endpoint string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RelayClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send delivers req. Only a 2xx reply whose body reports success counts.
func (c *RelayClient) Send(ctx context.Context, req relay.Request) error {
	errb := oops.In("relay").With("endpoint", c.endpoint, "client", req.ClientEmail)

	payload, err := json.Marshal(req)
	if err != nil {
		return errb.Wrapf(err, "marshalling relay request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errb.Wrapf(err, "creating relay request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errb.Wrapf(err, "sending relay request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out relay.Response
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errb.With("status", resp.StatusCode).Errorf("relay returned %d: %s", resp.StatusCode, msg)
	}
	if !out.Success {
		return errb.Errorf("relay did not confirm delivery: %s", out.Message)
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (c *RelayClient) String() string {
	return fmt.Sprintf("relay(%s)", c.endpoint)
}
