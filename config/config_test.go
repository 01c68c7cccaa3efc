package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rebalancer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeYAML(t, `
account_id: acc-1
broker:
  simulated: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acc-1", cfg.AccountID)
	assert.Equal(t, 1000, cfg.Trading.LotSize)
	assert.True(t, cfg.Trading.OddLotBook)
	assert.Equal(t, "LIMIT", cfg.Trading.ExecutionStyle)
	assert.Equal(t, "CASH", cfg.Trading.OrderCondition)
	assert.Equal(t, "fixed-weight", cfg.Strategy.ID)
	assert.True(t, cfg.Epsilon().IsPositive())
}

func TestLoadStrategyTargets(t *testing.T) {
	path := writeYAML(t, `
account_id: acc-1
broker:
  simulated: true
strategy:
  id: fixed-weight
  targets:
    "2330": "3"
    "2317": "1.5"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	book, err := cfg.TargetBook()
	require.NoError(t, err)
	require.Len(t, book, 2)
	assert.True(t, book["2317"].Equal(decimal.RequireFromString("1.5")))
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	t.Setenv("BROKER_API_KEY", "k-123")
	t.Setenv("BROKER_TOTP_SECRET", "JBSWY3DPEHPK3PXP")

	path := writeYAML(t, `
account_id: acc-1
broker:
  base_url: https://api.broker.example
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.Broker.APIKey)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cfg.Broker.TOTPSecret)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing account",
			yaml: "broker:\n  simulated: true\n",
			want: "account_id",
		},
		{
			name: "extra bid out of range",
			yaml: "account_id: a\nbroker:\n  simulated: true\ntrading:\n  extra_bid_pct: \"0.2\"\n",
			want: "extra_bid_pct",
		},
		{
			name: "market style with extra bid",
			yaml: "account_id: a\nbroker:\n  simulated: true\ntrading:\n  execution_style: MARKET_AGGRESSIVE\n  extra_bid_pct: \"0.01\"\n",
			want: "cannot be combined",
		},
		{
			name: "unknown condition",
			yaml: "account_id: a\nbroker:\n  simulated: true\ntrading:\n  order_condition: YOLO\n",
			want: "order_condition",
		},
		{
			name: "real broker without url",
			yaml: "account_id: a\n",
			want: "base_url",
		},
		{
			name: "unparseable strategy target",
			yaml: "account_id: a\nbroker:\n  simulated: true\nstrategy:\n  targets:\n    \"2330\": \"three\"\n",
			want: "target quantity",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tc.yaml))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestValidateAllowsMarketStyleWithZeroExtraBid(t *testing.T) {
	path := writeYAML(t, `
account_id: acc-1
broker:
  simulated: true
trading:
  execution_style: MARKET_PASSIVE
`)
	_, err := Load(path)
	assert.NoError(t, err)
}
