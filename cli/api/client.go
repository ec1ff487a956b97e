// Package api is the HTTP client used by the patientctl commands.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a patientledger server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx response.
type Error struct {
	Status  int
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func seg(s string) string {
	return url.PathEscape(s)
}

type Receipt struct {
	TxID        string    `json:"txId"`
	Seq         uint64    `json:"seq"`
	Key         string    `json:"key"`
	Op          string    `json:"op"`
	CommittedAt time.Time `json:"committedAt"`
}

type Created struct {
	PatientID string  `json:"patientId,omitempty"`
	ConsentID string  `json:"consentId,omitempty"`
	Receipt   Receipt `json:"receipt"`
}

type Patient struct {
	PatientID   string    `json:"patientId"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"dateOfBirth"`
	ContactInfo string    `json:"contactInfo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Consent struct {
	ConsentID    string    `json:"consentId"`
	PatientID    string    `json:"patientId"`
	ProviderID   string    `json:"providerId"`
	ConsentGiven bool      `json:"consentGiven"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Entry struct {
	Seq         uint64    `json:"seq"`
	Op          string    `json:"op"`
	Key         string    `json:"key"`
	ValueCID    string    `json:"valueCid,omitempty"`
	PrevHash    string    `json:"prevHash"`
	EntryHash   string    `json:"entryHash"`
	CommittedAt time.Time `json:"committedAt"`
}

// PatientFields is the mutable part of a patient.
type PatientFields struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth"`
	ContactInfo string `json:"contactInfo"`
}

func (c *Client) CreatePatient(ctx context.Context, patientID string, f PatientFields) (Created, error) {
	in := struct {
		PatientID string `json:"patientId,omitempty"`
		PatientFields
	}{patientID, f}
	var out Created
	err := c.do(ctx, http.MethodPost, "/api/v1/patients", in, &out)
	return out, err
}

func (c *Client) GetPatient(ctx context.Context, patientID string) (Patient, error) {
	var out Patient
	err := c.do(ctx, http.MethodGet, "/api/v1/patients/"+seg(patientID), nil, &out)
	return out, err
}

func (c *Client) UpdatePatient(ctx context.Context, patientID string, f PatientFields) (Receipt, error) {
	var out struct {
		Receipt Receipt `json:"receipt"`
	}
	err := c.do(ctx, http.MethodPut, "/api/v1/patients/"+seg(patientID), f, &out)
	return out.Receipt, err
}

func (c *Client) DeletePatient(ctx context.Context, patientID string) (Receipt, error) {
	var out struct {
		Receipt Receipt `json:"receipt"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/patients/"+seg(patientID), nil, &out)
	return out.Receipt, err
}

func (c *Client) CreateConsent(ctx context.Context, patientID, providerID string, given bool) (Created, error) {
	in := map[string]any{"patientId": patientID, "providerId": providerID, "consentGiven": given}
	var out Created
	err := c.do(ctx, http.MethodPost, "/api/v1/consents", in, &out)
	return out, err
}

func (c *Client) GetConsent(ctx context.Context, patientID, providerID string) (Consent, error) {
	var out Consent
	err := c.do(ctx, http.MethodGet, "/api/v1/consents/"+seg(patientID)+"/"+seg(providerID), nil, &out)
	return out, err
}

func (c *Client) UpdateConsent(ctx context.Context, patientID, providerID string, given bool) (Receipt, error) {
	var out struct {
		Receipt Receipt `json:"receipt"`
	}
	in := map[string]any{"consentGiven": given}
	err := c.do(ctx, http.MethodPut, "/api/v1/consents/"+seg(patientID)+"/"+seg(providerID), in, &out)
	return out.Receipt, err
}

func (c *Client) DeleteConsent(ctx context.Context, patientID, providerID string) (Receipt, error) {
	var out struct {
		Receipt Receipt `json:"receipt"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/consents/"+seg(patientID)+"/"+seg(providerID), nil, &out)
	return out.Receipt, err
}

func (c *Client) PatientHistory(ctx context.Context, patientID string) ([]Entry, error) {
	var out struct {
		Entries []Entry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/history/patients/"+seg(patientID), nil, &out)
	return out.Entries, err
}

func (c *Client) ConsentHistory(ctx context.Context, patientID, providerID string) ([]Entry, error) {
	var out struct {
		Entries []Entry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/history/consents/"+seg(patientID)+"/"+seg(providerID), nil, &out)
	return out.Entries, err
}
