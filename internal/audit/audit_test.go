// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/pagination"
)

/*
TestEntry_NeverCarriesSecrets verifies the builders mask the document and fingerprint the token.
*/
func TestEntry_NeverCarriesSecrets(t *testing.T) {
	session := &identity.Session{Token: "secret-token", User: identity.User{ID: "u-1", Document: "52998224725"}}

	entry := audit.New(audit.EventLogin, audit.OutcomeSuccess).Of(session).In("StockTech")

	assert.Equal(t, "u-1", entry.UserID)
	assert.Equal(t, "529.***.***-25", entry.Document)
	assert.Equal(t, sec.Fingerprint("secret-token"), entry.TokenFP)
	assert.NotContains(t, entry.TokenFP, "secret")
	assert.Equal(t, "StockTech", entry.Module)

	raw := audit.New(audit.EventLogin, audit.OutcomeFailure).For("11.222.333/0001-81")
	assert.Equal(t, "11.***.***/****-81", raw.Document)
}

/*
TestTrail_RecordAndList verifies stamping, filtering and newest-first pagination.
*/
func TestTrail_RecordAndList(t *testing.T) {
	repository := audit.NewMemoryRepository(10)
	trail := audit.NewTrail(repository)

	ctx := ctxutil.WithRequestID(context.Background(), "req-1")
	ctx = ctxutil.WithClientIP(ctx, "10.0.0.1")

	for _, event := range []audit.Event{audit.EventLogin, audit.EventHandoffIssued, audit.EventLogin} {
		trail.Record(ctx, audit.New(event, audit.OutcomeSuccess).Of(&identity.Session{
			Token: "tok", User: identity.User{ID: "u-1", Document: "52998224725"},
		}))
	}
	trail.Record(ctx, audit.New(audit.EventLogout, audit.OutcomeSuccess))

	entries, total, err := trail.List(ctx, audit.Filter{}, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.EventLogout, entries[0].Event)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "10.0.0.1", entries[0].IPAddress)

	entries, total, err = trail.List(ctx, audit.Filter{Event: audit.EventLogin, UserID: "u-1"}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, entries, 2)

	entries, _, err = trail.List(ctx, audit.Filter{}, pagination.Params{Page: 9, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

/*
TestTrail_LogOnly verifies a trail without repository and a nil trail are safe.
*/
func TestTrail_LogOnly(t *testing.T) {
	trail := audit.NewTrail(nil)
	trail.Record(context.Background(), audit.New(audit.EventLogout, audit.OutcomeSuccess))
	assert.False(t, trail.Persistent())

	entries, total, err := trail.List(context.Background(), audit.Filter{}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)

	var missing *audit.Trail
	missing.Record(context.Background(), audit.New(audit.EventLogout, audit.OutcomeSuccess))
}

/*
TestMemoryRepository_Capacity verifies the oldest entries are evicted.
*/
func TestMemoryRepository_Capacity(t *testing.T) {
	repository := audit.NewMemoryRepository(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repository.Insert(context.Background(), &audit.Entry{ID: id}))
	}

	entries, total, err := repository.List(context.Background(), audit.Filter{}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
}

/*
TestMigrations_Embedded verifies the schema ships inside the binary.
*/
func TestMigrations_Embedded(t *testing.T) {
	matches, err := fs.Glob(audit.Migrations, audit.MigrationsDir+"/*.up.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
