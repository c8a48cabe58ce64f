package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// portalClient speaks the portal's structured JSON API. This is the
// cheapest and most reliable strategy, so it runs first.
type portalClient struct {
	httpClient *http.Client
	baseURL    string
}

type customerFromLinkResponse struct {
	Customer struct {
		ID                 string `json:"id"`
		LedgerPricingUnits []struct {
			ID string `json:"id"`
		} `json:"ledger_pricing_units"`
	} `json:"customer"`
}

type ledgerSummaryResponse struct {
	CreditsBalance any `json:"credits_balance"`
}

// fetchBalance resolves the link token to a customer, then reads the
// ledger summary for its first pricing unit.
func (c *portalClient) fetchBalance(ctx context.Context, token string) (uint, error) {
	customerID, pricingUnitID, err := c.resolveAccount(ctx, token)
	if err != nil {
		return 0, err
	}

	summaryURL := fmt.Sprintf("%s/api/v1/customers/%s/ledger_summary?pricing_unit_id=%s&token=%s",
		c.baseURL, url.PathEscape(customerID), url.QueryEscape(pricingUnitID), url.QueryEscape(token))

	body, err := c.get(ctx, summaryURL)
	if err != nil {
		return 0, err
	}

	var summary ledgerSummaryResponse
	if err := json.Unmarshal(body, &summary); err != nil {
		return 0, fmt.Errorf("failed to decode ledger summary: %w", err)
	}

	f, ok := numericValue(summary.CreditsBalance)
	if !ok {
		return 0, fmt.Errorf("ledger summary has no usable credits_balance")
	}
	n, ok := saneAmount(f)
	if !ok {
		return 0, fmt.Errorf("ledger balance %v is outside the sane range", f)
	}
	return n, nil
}

// resolveAccount exchanges the link token for the customer and pricing
// unit IDs needed by the ledger endpoint.
func (c *portalClient) resolveAccount(ctx context.Context, token string) (string, string, error) {
	linkURL := fmt.Sprintf("%s/api/v1/customer_from_link?token=%s", c.baseURL, url.QueryEscape(token))

	body, err := c.get(ctx, linkURL)
	if err != nil {
		return "", "", err
	}

	var resp customerFromLinkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", "", fmt.Errorf("failed to decode customer response: %w", err)
	}

	if resp.Customer.ID == "" {
		return "", "", errors.New("customer response missing id")
	}
	if len(resp.Customer.LedgerPricingUnits) == 0 {
		return "", "", errors.New("customer has no ledger pricing units")
	}

	return resp.Customer.ID, resp.Customer.LedgerPricingUnits[0].ID, nil
}

func (c *portalClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("portal returned %d: %w", resp.StatusCode, ErrAuth)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read portal response: %w", err)
	}
	return body, nil
}
