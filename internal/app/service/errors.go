package service

import (
	"errors"
	"fmt"

	"github.com/sifan077/utmlink/internal/app/shortcode"
	"github.com/sifan077/utmlink/internal/app/urlguard"
	"github.com/sifan077/utmlink/internal/app/utm"
)

var (
	ErrInvalidURL         = urlguard.ErrInvalidURL
	ErrBlockedDomain      = urlguard.ErrBlockedDomain
	ErrInvalidAlias       = shortcode.ErrInvalidAlias
	ErrCodeSpaceExhausted = shortcode.ErrCodeSpaceExhausted
	ErrCampaignValidation = utm.ErrCampaignValidation

	ErrAliasTaken        = errors.New("alias already taken")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNotFound          = errors.New("not found")
	ErrInactive          = errors.New("inactive")
	ErrExpired           = errors.New("expired")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrExpiryInPast      = errors.New("expiry is in the past")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrStorage           = errors.New("storage error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidURL, "InvalidURL"},
	{ErrBlockedDomain, "BlockedDomain"},
	{ErrInvalidAlias, "InvalidAlias"},
	{ErrAliasTaken, "AliasTaken"},
	{ErrRateLimitExceeded, "RateLimitExceeded"},
	{ErrCodeSpaceExhausted, "CodeSpaceExhausted"},
	{ErrNotFound, "NotFound"},
	{ErrInactive, "Inactive"},
	{ErrExpired, "Expired"},
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrExpiryInPast, "ExpiryInPast"},
	{ErrCampaignValidation, "CampaignValidationError"},
	{ErrInvalidStatus, "InvalidStatus"},
	{ErrStorage, "StorageError"},
}

// Kind names the error category of err for API responses. Unclassified
// errors report "Internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}
