// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// AzureDevOpsScope is the Entra ID resource scope for Azure DevOps.
const AzureDevOpsScope = "499b84ac-1321-427f-aa17-267ca6975798/.default"

const deviceCodeTimeout = 15 * time.Minute

// msalClient is the subset of public.Client used here.
type msalClient interface {
	AcquireTokenByDeviceCode(ctx context.Context, scopes []string, opts ...public.AcquireByDeviceCodeOption) (public.DeviceCode, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, opts ...public.AcquireSilentOption) (public.AuthResult, error)
	Accounts(ctx context.Context) ([]public.Account, error)
}

// DeviceCodeAuthenticator signs in through the Microsoft Entra ID device
// code flow. It also refreshes tokens silently from the MSAL cache kept
// in the credential's refresh state.
type DeviceCodeAuthenticator struct {
	clientID string
	tenantID string
	out      io.Writer

	newClient func(cache.ExportReplace) (msalClient, error)
}

// NewDeviceCodeAuthenticator returns an authenticator for the given public
// client application and tenant ("organizations" for any work account).
// Sign-in instructions are written to out.
func NewDeviceCodeAuthenticator(clientID, tenantID string, out io.Writer) *DeviceCodeAuthenticator {
	if out == nil {
		out = os.Stderr
	}
	a := &DeviceCodeAuthenticator{clientID: clientID, tenantID: tenantID, out: out}
	a.newClient = a.msal
	return a
}

func (a *DeviceCodeAuthenticator) msal(c cache.ExportReplace) (msalClient, error) {
	client, err := public.New(a.clientID,
		public.WithAuthority(fmt.Sprintf("https://login.microsoftonline.com/%s", a.tenantID)),
		public.WithCache(c),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MSAL client: %w", err)
	}
	return client, nil
}

// Authenticate runs the device code flow and waits for the user.
func (a *DeviceCodeAuthenticator) Authenticate(ctx context.Context, organization string) (*Credential, error) {
	blob := &blobCache{}
	client, err := a.newClient(blob)
	if err != nil {
		return nil, err
	}

	authCtx, cancel := context.WithTimeout(ctx, deviceCodeTimeout)
	defer cancel()

	deviceCode, err := client.AcquireTokenByDeviceCode(authCtx, []string{AzureDevOpsScope})
	if err != nil {
		return nil, fmt.Errorf("failed to start device code flow: %w", err)
	}

	if deviceCode.Result.Message != "" {
		fmt.Fprintln(a.out, deviceCode.Result.Message)
	} else {
		fmt.Fprintf(a.out, "To sign in, open %s and enter the code %s\n",
			deviceCode.Result.VerificationURL, deviceCode.Result.UserCode)
	}

	result, err := deviceCode.AuthenticationResult(authCtx)
	if err != nil {
		return nil, fmt.Errorf("device code authentication failed: %w", err)
	}
	return oauthCredential(organization, result, blob.data), nil
}

// Refresh acquires a new access token from the cached refresh token.
func (a *DeviceCodeAuthenticator) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if len(cred.RefreshState) == 0 {
		return nil, errors.New("credential has no refresh state")
	}

	blob := &blobCache{data: cred.RefreshState}
	client, err := a.newClient(blob)
	if err != nil {
		return nil, err
	}

	accounts, err := client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, errors.New("no cached account to refresh")
	}

	result, err := client.AcquireTokenSilent(ctx, []string{AzureDevOpsScope}, public.WithSilentAccount(accounts[0]))
	if err != nil {
		return nil, fmt.Errorf("silent token acquisition failed: %w", err)
	}
	return oauthCredential(cred.Organization, result, blob.data), nil
}

func oauthCredential(organization string, result public.AuthResult, state []byte) *Credential {
	expires := result.ExpiresOn
	return &Credential{
		Organization: organization,
		Token:        result.AccessToken,
		Kind:         KindOAuth,
		ExpiresAt:    &expires,
		RefreshState: state,
	}
}

// blobCache is an in-memory MSAL cache whose contents travel with the
// credential instead of living in a separate file.
type blobCache struct {
	data []byte
}

func (c *blobCache) Replace(ctx context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(c.data) == 0 {
		return nil
	}
	// A corrupt cache only costs a fresh sign-in.
	if err := u.Unmarshal(c.data); err != nil {
		c.data = nil
	}
	return nil
}

func (c *blobCache) Export(ctx context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal MSAL cache: %w", err)
	}
	c.data = data
	return nil
}
