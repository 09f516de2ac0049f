package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"chart-observer/src/helpers"
	"chart-observer/src/interfaces"
	"chart-observer/src/logger"
	"chart-observer/src/models"
)

// klinesResponse is the backend envelope. The backend reports failures as
// {"error": "..."} with a 200 status, so both fields are optional.
type klinesResponse struct {
	Symbol string            `json:"symbol,omitempty"`
	Data   *[]models.MCandle `json:"data"`
	Error  *string           `json:"error"`
}

type symbolsResponse struct {
	Data  *[]string `json:"data"`
	Error *string   `json:"error"`
}

// -----------------------------------------------------------------------------

// Loader fetches historical candles from the backend REST API.
type Loader struct {
	BaseURL string
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewLoader(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewLogger(cfg, "SnapshotLoader")
	}
	return &Loader{
		BaseURL: strings.TrimRight(cfg.Backend.RestURL, "/"),
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Load performs exactly one klines request for the selection.
func (l *Loader) Load(ctx context.Context, selection models.MSelection, limit int) ([]models.MCandle, error) {
	endpoint := fmt.Sprintf("%s/klines/%s", l.BaseURL, url.PathEscape(selection.Symbol))
	params := map[string]string{
		"interval": string(selection.Interval),
		"limit":    strconv.Itoa(limit),
	}

	body, status, err := l.Network.Get(ctx, endpoint, params)
	if err != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonNetwork, 0, "klines request for "+selection.String()+" failed", err)
	}
	if status != http.StatusOK {
		return nil, helpers.NewFetchError(helpers.FetchReasonStatus, status, fmt.Sprintf("klines request for %s returned status %d", selection, status), nil)
	}

	var resp klinesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonPayload, status, "klines payload for "+selection.String()+" is not valid JSON", err)
	}
	if resp.Error != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonBackend, status, "backend rejected klines request for "+selection.String()+": "+*resp.Error, nil)
	}
	if resp.Data == nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonPayload, status, "klines payload for "+selection.String()+" has no data", nil)
	}

	candles := *resp.Data
	if i := firstDisorder(candles); i >= 0 {
		// Store skips the offending candles
		l.Logger.Warning("Snapshot %s not strictly ascending at index %d (%d after %d)",
			selection, i, candles[i].Time, candles[i-1].Time)
	}
	l.Logger.Debug("Loaded %d candles for %s", len(candles), selection)
	return candles, nil
}

// -----------------------------------------------------------------------------

// Symbols lists the instruments known to the backend.
func (l *Loader) Symbols(ctx context.Context) ([]string, error) {
	body, status, err := l.Network.Get(ctx, l.BaseURL+"/symbols", nil)
	if err != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonNetwork, 0, "symbols request failed", err)
	}
	if status != http.StatusOK {
		return nil, helpers.NewFetchError(helpers.FetchReasonStatus, status, fmt.Sprintf("symbols request returned status %d", status), nil)
	}

	var resp symbolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonPayload, status, "symbols payload is not valid JSON", err)
	}
	if resp.Error != nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonBackend, status, "backend rejected symbols request: "+*resp.Error, nil)
	}
	if resp.Data == nil {
		return nil, helpers.NewFetchError(helpers.FetchReasonPayload, status, "symbols payload has no data", nil)
	}
	return *resp.Data, nil
}

// -----------------------------------------------------------------------------

// DefaultSelection keeps the preferred symbol when the backend lists it,
// otherwise falls back to the first listed symbol.
func DefaultSelection(preferred models.MSelection, symbols []string) models.MSelection {
	for _, s := range symbols {
		if strings.EqualFold(s, preferred.Symbol) {
			return preferred
		}
	}
	for _, s := range symbols {
		if sel, err := models.NewSelection(s, string(preferred.Interval)); err == nil {
			return sel
		}
	}
	return preferred
}

// -----------------------------------------------------------------------------

func firstDisorder(candles []models.MCandle) int {
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			return i
		}
	}
	return -1
}
