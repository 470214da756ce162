package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crexi_sync/config"
	"crexi_sync/models"
)

const maxErrorBody = 512

// SupabaseStore appends snapshot rows through the PostgREST endpoint of a
// Supabase project. Every insert is its own request; there is no transaction
// across calls.
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		client:     client,
	}
}

func (s *SupabaseStore) InsertMarketSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	return s.insert(ctx, MarketSnapshotsTable, snap)
}

func (s *SupabaseStore) InsertSuiteSnapshots(ctx context.Context, suites []models.SuiteSnapshot) error {
	if len(suites) == 0 {
		return nil
	}
	return s.insert(ctx, SuiteSnapshotsTable, suites)
}

// SupabaseError is a non-2xx response from PostgREST.
type SupabaseError struct {
	Table      string
	StatusCode int
	Body       string
}

func (e *SupabaseError) Error() string {
	return fmt.Sprintf("supabase error %d on %s: %s", e.StatusCode, e.Table, e.Body)
}

func (s *SupabaseStore) insert(ctx context.Context, table string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/rest/v1/"+table, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SupabaseError{Table: table, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
