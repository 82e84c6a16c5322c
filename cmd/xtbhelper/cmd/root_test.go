package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "once", "quote", "movers", "history"} {
		assert.True(t, names[want], "missing %s command", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestQuoteCommand_RequiresSymbols(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"quote"})
	defer rootCmd.SetArgs(nil)

	assert.Error(t, Execute())
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	closed := filepath.Join(dir, "closed.csv")
	require.NoError(t, os.WriteFile(closed, []byte(`Symbol,Volume,Open price,Close price,Gross P/L,Open time,Close time
SAP.DE,1,100,110,10,2024-05-01 09:00:00,2024-05-01 10:00:00
SAP.DE,3,104,114,30,2024-05-01 09:10:00,2024-05-01 10:00:30
`), 0600))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("closed_trades_file: "+closed+"\n"), 0600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--config", cfg})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "1 trades, gross +€40.00")
}

func TestHistoryCommand_Month(t *testing.T) {
	dir := t.TempDir()
	closed := filepath.Join(dir, "closed.csv")
	require.NoError(t, os.WriteFile(closed, []byte(`Symbol,Volume,Open price,Close price,Gross P/L,Open time,Close time
DTE.DE,1,20,25,5,2024-06-01 09:00:00,2024-06-03 09:00:00
IFX.DE,100,30,28.5,-150,2024-05-01 09:00:00,2024-05-20 15:30:00
SAP.DE,10,100,110,100,2024-05-01 09:00:00,2024-05-02 10:00:00
`), 0600))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("closed_trades_file: "+closed+"\n"), 0600))

	now := time.Now()
	offset := -((now.Year()-2024)*12 + int(now.Month()) - int(time.May))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--config", cfg, "--month", strconv.Itoa(offset)})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "May 2024 | 2 trades")
	assert.Contains(t, out.String(), "avg -1.25%")
	assert.Contains(t, out.String(), "2 trades, gross -€50.00")
	assert.NotContains(t, out.String(), "DTE.DE")
}
