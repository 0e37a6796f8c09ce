package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/coinfo/internal/model"
)

// APIMarket is one entry of the /market/all listing.
type APIMarket struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// ToModel converts the API representation into the shared model type.
func (m APIMarket) ToModel() model.MarketInfo {
	return model.MarketInfo{
		Symbol:      m.Market,
		KoreanName:  m.KoreanName,
		EnglishName: m.EnglishName,
	}
}

// GetMarkets fetches every listed market.
func (c *Client) GetMarkets(ctx context.Context) ([]APIMarket, error) {
	query := url.Values{}
	query.Set("isDetails", "false")

	var resp []APIMarket
	if err := c.getJSON(ctx, "/market/all", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return resp, nil
}

// GetMarketInfo fetches the listing and converts it, dropping entries
// without a market code.
func (c *Client) GetMarketInfo(ctx context.Context) ([]model.MarketInfo, error) {
	markets, err := c.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.MarketInfo, 0, len(markets))
	for _, m := range markets {
		if strings.TrimSpace(m.Market) == "" {
			continue
		}
		out = append(out, m.ToModel())
	}
	return out, nil
}
