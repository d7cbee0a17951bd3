// Copyright 2025 Christian Helle
//
// Licensed under the MIT License (the "License"); you may not use this
// file except in compliance with the License. See the LICENSE file in the
// project root for the full license text.

package dispatch

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianhelle/azdocli/internal/api"
	"github.com/christianhelle/azdocli/internal/credential"
	adoerrors "github.com/christianhelle/azdocli/internal/errors"
	"github.com/christianhelle/azdocli/test/testutil"
)

type fakeResolver struct {
	cred  *credential.Credential
	err   error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, organization string) (*credential.Credential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.cred != nil {
		return f.cred, nil
	}
	return credential.NewPAT(organization, "secret"), nil
}

func newDispatcher(t *testing.T, m *testutil.MockServer, resolver *fakeResolver, mutate ...func(*Options)) (*Dispatcher, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts := Options{
		Organization: testutil.Organization,
		Project:      testutil.Project,
		Format:       "tsv",
		Columns:      map[string][]string{},
		API: api.Options{
			BaseURL: m.URL,
			Timeout: 2 * time.Second,
			Workers: 4,
			Retry: api.RetryConfig{
				MaxAttempts: 2,
				BaseDelay:   time.Millisecond,
				MaxDelay:    time.Millisecond,
				Multiplier:  1,
			},
		},
		PageSize:    50,
		Credentials: resolver,
		Out:         &out,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts), &out
}

func TestRunRendersResult(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.HandleJSON("GET /"+testutil.Project+"/_apis/wit/workitems/42", http.StatusOK, testutil.WorkItem(42, "Fix login", "Active"))
	resolver := &fakeResolver{}
	d, out := newDispatcher(t, m, resolver)

	err := d.Run(context.Background(), Invocation{Resource: "workitem", Verb: "get", Args: []string{"42"}})
	require.NoError(t, err)

	assert.Equal(t, "id\ttype\tstate\ttitle\tassigned-to\n42\tTask\tActive\tFix login\talice\n", out.String())
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, m.RequestCount())
}

func TestRunColumns(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		config    []string
		want      string
	}{
		{name: "explicit wins", requested: []string{"id", "Title"}, config: []string{"state"}, want: "id\ttitle\n42\tFix login\n"},
		{name: "config default", config: []string{"state", "id"}, want: "state\tid\nActive\t42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockServer(t)
			m.HandleJSON("GET /"+testutil.Project+"/_apis/wit/workitems/42", http.StatusOK, testutil.WorkItem(42, "Fix login", "Active"))
			d, out := newDispatcher(t, m, &fakeResolver{}, func(o *Options) {
				o.Columns["workitem"] = tt.config
			})

			err := d.Run(context.Background(), Invocation{Resource: "wi", Verb: "get", Args: []string{"42"}, Columns: tt.requested})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRunFailsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name      string
		inv       Invocation
		project   string
		wantUsage bool
	}{
		{name: "unknown resource", inv: Invocation{Resource: "build", Verb: "list"}, wantUsage: true},
		{name: "unknown verb", inv: Invocation{Resource: "repo", Verb: "update", Args: []string{"x"}}, wantUsage: true},
		{name: "unknown column", inv: Invocation{Resource: "workitem", Verb: "get", Args: []string{"1"}, Columns: []string{"nope"}}, wantUsage: true},
		{name: "unknown option", inv: Invocation{Resource: "workitem", Verb: "get", Args: []string{"1"}, Options: map[string]string{"x": "1"}}, wantUsage: true},
		{name: "missing argument", inv: Invocation{Resource: "workitem", Verb: "get"}},
		{name: "missing project", inv: Invocation{Resource: "repo", Verb: "list"}, project: " "},
		{name: "invalid enum", inv: Invocation{Resource: "pr", Verb: "list", Args: []string{"web"}, Options: map[string]string{"status": "merged"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockServer(t)
			resolver := &fakeResolver{}
			d, out := newDispatcher(t, m, resolver, func(o *Options) {
				if tt.project != "" {
					o.Project = tt.project
				}
			})

			err := d.Run(context.Background(), tt.inv)
			require.Error(t, err)
			assert.Equal(t, tt.wantUsage, adoerrors.IsUsage(err), "usage error: %v", err)
			assert.Equal(t, 1, adoerrors.ExitCode(err))
			assert.Zero(t, resolver.calls, "credential resolved for an invalid invocation")
			assert.Zero(t, m.RequestCount())
			assert.Empty(t, out.String())
		})
	}
}

func TestRunAuthErrorSendsNothing(t *testing.T) {
	m := testutil.NewMockServer(t)
	resolver := &fakeResolver{err: adoerrors.NewAuthError(adoerrors.AuthNotFound, testutil.Organization, nil)}
	d, out := newDispatcher(t, m, resolver)

	err := d.Run(context.Background(), Invocation{Resource: "project", Verb: "list"})
	assert.Equal(t, 2, adoerrors.ExitCode(err))
	assert.Zero(t, m.RequestCount())
	assert.Empty(t, out.String())
}

func TestRunExpiredCredentialFailsClosed(t *testing.T) {
	m := testutil.NewMockServer(t)
	past := time.Now().Add(-time.Hour)
	resolver := &fakeResolver{cred: &credential.Credential{
		Organization: testutil.Organization, Token: "t", Kind: credential.KindOAuth, ExpiresAt: &past,
	}}
	d, _ := newDispatcher(t, m, resolver)

	err := d.Run(context.Background(), Invocation{Resource: "project", Verb: "list"})
	authErr, ok := adoerrors.AsAuthError(err)
	require.True(t, ok, "expected AuthError, got %v", err)
	assert.Equal(t, adoerrors.AuthExpired, authErr.Kind)
	assert.Zero(t, m.RequestCount())
}

func TestRunDeleteRendersDeletion(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.Handle("DELETE /"+testutil.Project+"/_apis/wit/workitems/9", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	d, out := newDispatcher(t, m, &fakeResolver{}, func(o *Options) {
		o.Columns["workitem"] = []string{"title"}
	})

	err := d.Run(context.Background(), Invocation{Resource: "workitem", Verb: "delete", Args: []string{"9"}})
	require.NoError(t, err)
	assert.Equal(t, "resource\tid\tstatus\nworkitem\t9\tdeleted\n", out.String())
}

func TestRunJSON(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.HandlePages("GET /_apis/projects", testutil.List(testutil.ProjectJSON("p1", "Fabrikam")))
	d, out := newDispatcher(t, m, &fakeResolver{}, func(o *Options) { o.Format = "json" })

	err := d.Run(context.Background(), Invocation{Resource: "project", Verb: "list"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1","name":"Fabrikam","description":"Fabrikam project","state":"wellFormed",
		"visibility":"private","lastUpdateTime":"2025-03-01T12:00:00Z",
		"url":"https://dev.azure.com/contoso/_apis/projects/p1"}]`, out.String())
}

func TestRunJSONColumns(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		config    []string
		want      string
	}{
		{
			name:      "explicit columns limit JSON",
			requested: []string{"name", "id"},
			want:      `[{"name":"Fabrikam","id":"p1"}]`,
		},
		{
			name:   "config columns keep the full object",
			config: []string{"name"},
			want: `[{"id":"p1","name":"Fabrikam","description":"Fabrikam project","state":"wellFormed",
				"visibility":"private","lastUpdateTime":"2025-03-01T12:00:00Z",
				"url":"https://dev.azure.com/contoso/_apis/projects/p1"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockServer(t)
			m.HandlePages("GET /_apis/projects", testutil.List(testutil.ProjectJSON("p1", "Fabrikam")))
			d, out := newDispatcher(t, m, &fakeResolver{}, func(o *Options) {
				o.Format = "json"
				if tt.config != nil {
					o.Columns["project"] = tt.config
				}
			})

			err := d.Run(context.Background(), Invocation{Resource: "project", Verb: "list", Columns: tt.requested})
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, out.String())
		})
	}
}

func TestRunCancelledRendersNothing(t *testing.T) {
	m := testutil.NewMockServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	m.Handle("GET /_apis/projects", func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	})
	d, out := newDispatcher(t, m, &fakeResolver{})

	err := d.Run(ctx, Invocation{Resource: "project", Verb: "list"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "resolve-credential", StageResolveCredential.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
