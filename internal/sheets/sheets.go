package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cubattendance/attendance/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
)

const Scope = "https://www.googleapis.com/auth/spreadsheets"

// Outcome is the result of a remote write. OK is false when the spreadsheet
// service answered but declined the operation; Message then carries its reason.
type Outcome struct {
	OK      bool
	Message string
}

// Client reads and writes rows of a spreadsheet addressed by (spreadsheet id, range).
// Remote rejections come back as an Outcome; only transport and authentication
// failures are returned as errors.
type Client interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]string, Outcome, error)
	Append(ctx context.Context, spreadsheetID, rng string, row []string) (Outcome, error)
	Update(ctx context.Context, spreadsheetID, rowAddress string, row []string) (Outcome, error)
}

// HTTPClient talks to the Sheets v4 REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client against baseURL. httpClient must already carry
// credentials; a nil client uses http.DefaultClient.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// NewServiceAccountClient authenticates with the service account credentials
// file in cfg, or with application default credentials when none is set.
func NewServiceAccountClient(ctx context.Context, cfg config.SheetsConfig) (*HTTPClient, error) {
	var httpClient *http.Client
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading service account credentials")
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, Scope)
		if err != nil {
			return nil, errors.Wrap(err, "parsing service account credentials")
		}
		httpClient = jwtCfg.Client(ctx)
	} else {
		c, err := google.DefaultClient(ctx, Scope)
		if err != nil {
			return nil, errors.Wrap(err, "loading default google credentials")
		}
		httpClient = c
	}
	httpClient.Timeout = time.Duration(cfg.TimeoutSec) * time.Second
	return NewHTTPClient(cfg.BaseURL, httpClient), nil
}

type valueRange struct {
	Range          string          `json:"range,omitempty"`
	MajorDimension string          `json:"majorDimension,omitempty"`
	Values         [][]interface{} `json:"values,omitempty"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *HTTPClient) valuesURL(spreadsheetID, rng, suffix string) string {
	return fmt.Sprintf("%s/%s/values/%s%s", c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rng), suffix)
}

// Get reads a range. A response without values is an empty range.
func (c *HTTPClient) Get(ctx context.Context, spreadsheetID, rng string) ([][]string, Outcome, error) {
	body, outcome, err := c.do(ctx, http.MethodGet, c.valuesURL(spreadsheetID, rng, ""), nil)
	if err != nil || !outcome.OK {
		return nil, outcome, err
	}

	var vr valueRange
	if len(body) > 0 {
		if err := json.Unmarshal(body, &vr); err != nil {
			return nil, Outcome{}, errors.Wrap(err, "decoding sheet values")
		}
	}
	return stringify(vr.Values), outcome, nil
}

// Append inserts row after the last row of the table found in rng.
func (c *HTTPClient) Append(ctx context.Context, spreadsheetID, rng string, row []string) (Outcome, error) {
	payload := valueRange{Values: [][]interface{}{toInterfaces(row)}}
	u := c.valuesURL(spreadsheetID, rng, ":append") + "?valueInputOption=RAW"
	_, outcome, err := c.do(ctx, http.MethodPost, u, payload)
	if err == nil && outcome.OK {
		outcome.Message = "Successfully appended row"
	}
	return outcome, err
}

// Update overwrites the single row starting at rowAddress.
func (c *HTTPClient) Update(ctx context.Context, spreadsheetID, rowAddress string, row []string) (Outcome, error) {
	payload := valueRange{
		Range:          rowAddress,
		MajorDimension: "ROWS",
		Values:         [][]interface{}{toInterfaces(row)},
	}
	u := c.valuesURL(spreadsheetID, rowAddress, "") + "?valueInputOption=RAW"
	_, outcome, err := c.do(ctx, http.MethodPut, u, payload)
	if err == nil && outcome.OK {
		outcome.Message = "Successfully updated row"
	}
	return outcome, err
}

func (c *HTTPClient) do(ctx context.Context, method, u string, payload interface{}) ([]byte, Outcome, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, Outcome{}, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, Outcome{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Outcome{}, errors.Wrapf(err, "sheets %s request failed", method)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Outcome{}, errors.Wrap(err, "reading sheets response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, Outcome{}, errors.Errorf("sheets authentication failed: %s", remoteMessage(resp.StatusCode, body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := remoteMessage(resp.StatusCode, body)
		logrus.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode,
		}).Warnf("sheets request declined: %s", msg)
		return nil, Outcome{OK: false, Message: msg}, nil
	}
	return body, Outcome{OK: true}, nil
}

func remoteMessage(status int, body []byte) string {
	var ge googleError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return ge.Error.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func stringify(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		row := make([]string, len(v))
		for i, cell := range v {
			if cell == nil {
				continue
			}
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows
}
