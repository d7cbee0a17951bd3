// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Kind identifies how a token authenticates against Azure DevOps.
type Kind string

const (
	// KindPAT is a personal access token, sent as HTTP basic auth.
	KindPAT Kind = "pat"
	// KindOAuth is a Microsoft Entra ID access token, sent as a bearer token.
	KindOAuth Kind = "oauth"
)

// ExpirySkew is subtracted from a credential's expiry so a token is never
// used in the last moments of its lifetime.
const ExpirySkew = 2 * time.Minute

// Credential is a resolved token for one organization.
type Credential struct {
	Organization string     `json:"organization"`
	Token        string     `json:"token"`
	Kind         Kind       `json:"kind"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	// RefreshState is opaque data an authenticator needs to refresh the
	// token silently (the serialized MSAL cache for device code logins).
	RefreshState []byte `json:"refresh_state,omitempty"`
}

// Expired reports whether the credential is unusable at now.
func (c *Credential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(ExpirySkew).Before(*c.ExpiresAt)
}

// Valid reports whether the credential carries a token and is unexpired.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Token != "" && !c.Expired(now)
}

// AuthorizationHeader returns the Authorization header value for this
// credential: basic auth with an empty user for PATs, bearer otherwise.
func (c *Credential) AuthorizationHeader() string {
	if c.Kind == KindOAuth {
		return "Bearer " + c.Token
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+c.Token))
}

// String never includes the token.
func (c Credential) String() string {
	if c.ExpiresAt != nil {
		return fmt.Sprintf("%s (%s, expires %s)", c.Organization, c.Kind, c.ExpiresAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s (%s)", c.Organization, c.Kind)
}

// NewPAT builds a non-expiring personal access token credential.
func NewPAT(organization, token string) *Credential {
	return &Credential{Organization: organization, Token: token, Kind: KindPAT}
}
