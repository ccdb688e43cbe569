// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/avelarcompany/gateway/internal/cli"
)

const snapshot = `{
  "id": "u-1",
  "full_name": "Maria Souza",
  "cpf": "529.982.247-25",
  "role": "manager",
  "is_active": true,
  "whatsapp_verified": true,
  "enabled_modules": ["StockTech", "Team"]
}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer

	root := cli.NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))

	err := root.Execute()
	return out.String(), err
}

/*
TestCatalog_JSON lists the embedded catalog in chooser order.
*/
func TestCatalog_JSON(t *testing.T) {
	out, err := run(t, "", "catalog", "--catalog", "", "-o", "json")
	require.NoError(t, err)

	var modules []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &modules))
	require.Len(t, modules, 9)
	assert.Equal(t, "StockTech", modules[0].ID)
	assert.Equal(t, "Family", modules[8].ID)
}

/*
TestGrant_ExplainsRefusals verifies each module carries a reason.
*/
func TestGrant_ExplainsRefusals(t *testing.T) {
	out, err := run(t, snapshot, "grant", "--catalog", "", "--user", "-", "-o", "yaml")
	require.NoError(t, err)

	var lines []struct {
		Module  string `yaml:"module"`
		Granted bool   `yaml:"granted"`
		Reason  string `yaml:"reason"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &lines))

	byModule := map[string]bool{}
	reasons := map[string]string{}
	for _, line := range lines {
		byModule[line.Module] = line.Granted
		reasons[line.Module] = line.Reason
	}

	assert.True(t, byModule["StockTech"])
	assert.False(t, byModule["Team"])
	assert.Contains(t, reasons["Team"], "scope company")
	assert.Equal(t, "not in enabled_modules", reasons["AvAdmin"])
}

/*
TestEncodeDecode_RoundTrip verifies the tool speaks the same wire format as the gateway.
*/
func TestEncodeDecode_RoundTrip(t *testing.T) {
	encoded, err := run(t, snapshot, "encode", "--catalog", "", "--mode", "legacy", "--user", "-", "--token", "tok-7", "--module", "StockTech")
	require.NoError(t, err)

	link := strings.TrimSpace(encoded)
	assert.True(t, strings.HasPrefix(link, "https://stocktech.avelarcompany.com.br?auth="))

	out, err := run(t, "", "decode", "--mode", "legacy", "--reveal", "-o", "json", link)
	require.NoError(t, err)

	var result struct {
		Present  bool   `json:"present"`
		Token    string `json:"token"`
		Stripped string `json:"stripped_url"`
		User     struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Present)
	assert.Equal(t, "tok-7", result.Token)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Equal(t, "https://stocktech.avelarcompany.com.br", result.Stripped)
}

/*
TestSignedMode_Tickets verifies signed links decode once for their audience.
*/
func TestSignedMode_Tickets(t *testing.T) {
	secret := strings.Repeat("s", 32)

	_, err := run(t, snapshot, "encode", "--mode", "signed", "--secret", "short", "--user", "-", "--token", "t", "--module", "StockTech")
	require.Error(t, err)

	encoded, err := run(t, snapshot, "encode", "--catalog", "", "--mode", "signed", "--secret", secret, "--user", "-", "--token", "tok-8", "--module", "StockTech")
	require.NoError(t, err)
	link := strings.TrimSpace(encoded)
	assert.Contains(t, link, "auth=t1.")

	_, err = run(t, "", "decode", "--mode", "signed", "--secret", secret, "--audience", "AvAdmin", link)
	assert.Error(t, err)

	out, err := run(t, "", "decode", "--mode", "signed", "--secret", secret, "--audience", "StockTech", link)
	require.NoError(t, err)
	assert.Contains(t, out, "u-1")
	assert.NotContains(t, out, "tok-8")
}

/*
TestRoute_Chooser shows a chooser for a user with two modules.
*/
func TestRoute_Chooser(t *testing.T) {
	user := strings.Replace(snapshot, `["StockTech", "Team"]`, `["StockTech", "Naldo"]`, 1)

	out, err := run(t, user, "route", "--catalog", "", "--mode", "legacy", "--user", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: chooser")
	assert.Contains(t, out, "Naldo")
}

/*
TestNotice covers the known codes and rejects unknown ones.
*/
func TestNotice(t *testing.T) {
	out, err := run(t, "", "notice", "session_expired")
	require.NoError(t, err)
	assert.Contains(t, out, "Sua sessão expirou.")

	_, err = run(t, "", "notice", "bogus")
	assert.Error(t, err)

	out, err = run(t, "", "notice", "-o", "json")
	require.NoError(t, err)
	var notices map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &notices))
	assert.Len(t, notices, 4)
}

/*
TestGrant_TextTable prints the formatted document above the table.
*/
func TestGrant_TextTable(t *testing.T) {
	out, err := run(t, snapshot, "grant", "--catalog", "", "--user", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "529.982.247-25")
	assert.Contains(t, out, "not in enabled_modules")
}
