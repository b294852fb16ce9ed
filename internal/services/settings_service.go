package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"payverse/internal/models"
	"payverse/internal/nexuspay"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// settingsTTL bounds how stale cached merchant credentials may be. Short
// enough that rotation takes effect quickly, long enough to keep credential
// reads off the hot path.
const settingsTTL = 30 * time.Second

// SettingsService reads merchant settings from the database through a small
// TTL cache. The cache is an explicit object with an explicit Invalidate hook:
// the admin settings-update path calls Invalidate so a rotation never waits
// out the TTL. Concurrent refreshes collapse into one query via singleflight.
type SettingsService struct {
	db       *sql.DB
	logger   zerolog.Logger
	fallback nexuspay.Credentials

	mu        sync.RWMutex
	cached    *models.MerchantSettings
	fetchedAt time.Time

	sf singleflight.Group
}

// NewSettingsService takes env-derived credentials as a fallback for
// deployments that have no merchant_settings row yet.
func NewSettingsService(db *sql.DB, fallback nexuspay.Credentials, logger zerolog.Logger) *SettingsService {
	return &SettingsService{db: db, fallback: fallback, logger: logger}
}

func (s *SettingsService) Get(ctx context.Context) (*models.MerchantSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < settingsTTL {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sf.Do("merchant_settings", func() (interface{}, error) {
		settings, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = settings
		s.fetchedAt = time.Now()
		s.mu.Unlock()
		return settings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MerchantSettings), nil
}

// Invalidate drops the cached row. Must be called whenever settings are
// updated.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// UpdateSettings rotates the merchant credentials and invalidates the cache.
func (s *SettingsService) UpdateSettings(ctx context.Context, merchantID, secretKey, username, password string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO merchant_settings (id, merchant_id, secret_key, username, password)
		 VALUES (1, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE merchant_id = VALUES(merchant_id), secret_key = VALUES(secret_key), username = VALUES(username), password = VALUES(password)`,
		merchantID, secretKey, username, password,
	)
	if err != nil {
		return fmt.Errorf("failed to update merchant settings: %w", err)
	}
	s.Invalidate()
	s.logger.Info().Str("merchant_id", merchantID).Msg("Merchant settings rotated")
	return nil
}

// Credentials implements nexuspay.CredentialsSource.
func (s *SettingsService) Credentials(ctx context.Context) (nexuspay.Credentials, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nexuspay.Credentials{}, err
	}
	return nexuspay.Credentials{
		Username:   settings.Username,
		Password:   settings.Password,
		MerchantID: settings.MerchantID,
		SecretKey:  settings.SecretKey,
	}, nil
}

func (s *SettingsService) load(ctx context.Context) (*models.MerchantSettings, error) {
	var settings models.MerchantSettings
	err := s.db.QueryRowContext(ctx,
		"SELECT id, merchant_id, secret_key, username, password, updated_at FROM merchant_settings ORDER BY id LIMIT 1",
	).Scan(&settings.ID, &settings.MerchantID, &settings.SecretKey, &settings.Username, &settings.Password, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.MerchantSettings{
			MerchantID: s.fallback.MerchantID,
			SecretKey:  s.fallback.SecretKey,
			Username:   s.fallback.Username,
			Password:   s.fallback.Password,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant settings: %w", err)
	}
	return &settings, nil
}
