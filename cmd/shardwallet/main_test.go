package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/shardwallet-go/config"
	"github.com/bitfsorg/shardwallet-go/keystore"
	"github.com/bitfsorg/shardwallet-go/shardwallet"
)

func newAddress(t *testing.T) string {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := script.NewAddressFromPublicKey(priv.PubKey(), true)
	require.NoError(t, err)
	return addr.AddressString
}

// run executes the CLI against dataDir and returns stdout.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	return runInput(t, dataDir, "", args...)
}

func runInput(t *testing.T, dataDir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(EnvTreasuryWIF, "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_TreeLifecycle(t *testing.T) {
	for _, store := range []string{"bolt", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			dir := t.TempDir()
			alice, bob, carol := newAddress(t), newAddress(t), newAddress(t)
			sw := func(args ...string) string {
				t.Helper()
				out, err := run(t, dir, append([]string{"--store", store}, args...)...)
				require.NoError(t, err, "shardwallet %s", strings.Join(args, " "))
				return out
			}

			assert.Contains(t, sw("init", alice), "root shard 1")
			assert.Contains(t, sw("split", "1",
				"--child", "500000:"+alice,
				"--child", "300000:"+bob,
				"--child", "200000:"+carol), "split into 2,3,4")
			assert.Contains(t, sw("merge", "3", "4", "--to", carol), "merged into 5")
			assert.Contains(t, sw("reassign", "2", bob), "shard 2 -> "+bob)
			assert.Contains(t, sw("reforge", "2", "5",
				"--child", "250000:"+alice,
				"--child", "750000:"+bob), "reforged into 6,7")

			var st shardwallet.State
			require.NoError(t, json.Unmarshal([]byte(sw("show", "--json")), &st))
			require.Len(t, st.Shards, 7)
			var total uint64
			for _, sh := range st.Shards {
				if sh.Active {
					total += sh.Weight
				}
			}
			assert.Equal(t, shardwallet.Denominator, total)
			assert.Equal(t, uint64(250000), st.Shards[5].Weight)
			assert.Equal(t, []shardwallet.ID{2, 5}, st.Shards[5].Sources)

			table := sw("show")
			assert.Contains(t, table, "RECIPIENT")
			assert.Contains(t, table, "75%")

			one := sw("show", "5")
			assert.Contains(t, one, "shard 5")
			assert.Contains(t, one, "recipient: "+carol)
			assert.Contains(t, one, "active:    false")
		})
	}
}

func TestCLI_Errors(t *testing.T) {
	dir := t.TempDir()
	alice := newAddress(t)

	_, err := run(t, dir, "init", "not-an-address")
	assert.Error(t, err)

	_, err = run(t, dir, "init", alice)
	require.NoError(t, err)

	_, err = run(t, dir, "split", "1", "--child", "600000:"+alice)
	assert.ErrorIs(t, err, shardwallet.ErrInvalidShareSum)

	_, err = run(t, dir, "split", "1")
	assert.ErrorContains(t, err, "--child")

	_, err = run(t, dir, "split", "1", "--child", "half:"+alice)
	assert.ErrorContains(t, err, "share")

	_, err = run(t, dir, "merge", "1", "1")
	assert.ErrorIs(t, err, shardwallet.ErrDuplicateOperand)

	_, err = run(t, dir, "show", "99")
	assert.ErrorIs(t, err, shardwallet.ErrUnknownShard)

	_, err = run(t, dir, "claim", "1")
	assert.ErrorIs(t, err, errNoTreasury)

	_, err = run(t, dir, "claim", "1", "tok")
	assert.ErrorIs(t, err, errTokenClaim)

	_, err = run(t, dir, "--store", "postgres", "show")
	assert.Error(t, err)
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := "store = \"sqlite\"\nlog_level = \"error\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(conf), 0600))

	_, err := run(t, dir, "init", newAddress(t))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "shardwallet.sqlite"))
	assert.NoError(t, err)

	_, err = run(t, dir, "--config", filepath.Join(dir, "missing.toml"), "show")
	assert.Error(t, err)
}

func TestCLI_Address(t *testing.T) {
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	want, err := script.NewAddressFromPublicKey(priv.PubKey(), false)
	require.NoError(t, err)

	dir := t.TempDir()
	conf := "network = \"regtest\"\ntreasury_wif = \"" + priv.Wif() + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(conf), 0600))

	out, err := run(t, dir, "address")
	require.NoError(t, err)
	assert.Equal(t, want.AddressString+"\n", out)
}

func TestCLI_Bench(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "bench", "-j", "deploy")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var line map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, "Shardwallet deploy", line["label"])
	assert.Len(t, line["hash"], 10)

	out, err = run(t, dir, "bench", "--rate", "100", "DEPLOY")
	require.NoError(t, err)
	assert.Regexp(t, `^Shardwallet deploy: \d+ units \([0-9.]+ BSV @ 100 sat/unit\)\n$`, out)

	_, err = run(t, dir, "bench", "-j", "-t")
	assert.Error(t, err)

	scenarios := filepath.Join(dir, "scenarios.yaml")
	require.NoError(t, os.WriteFile(scenarios, []byte(`
scenarios:
  - name: custom
    steps:
      - op: init
        recipient: alice
      - label: reassign root
        op: reassign
        shard: 1
        recipient: bob
`), 0600))
	out, err = run(t, dir, "bench", "--file", scenarios)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "reassign root: "), out)

	prices := filepath.Join(dir, "prices.yaml")
	require.NoError(t, os.WriteFile(prices, []byte(`
base: 7
cold_read: 0
warm_read: 0
new_slot: 0
update_slot: 0
balance_query: 0
native_transfer: 0
token_transfer: 0
`), 0600))
	out, err = run(t, dir, "bench", "--schedule", prices, "deploy")
	require.NoError(t, err)
	assert.Equal(t, "Shardwallet deploy: 7 units (0.0000035 BSV @ 50 sat/unit)\n", out)

	_, err = run(t, dir, "bench", "--schedule", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCLI_KeygenRestore(t *testing.T) {
	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed, err := keystore.SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	key, err := keystore.TreasuryKey(seed, false, 2)
	require.NoError(t, err)
	want, err := script.NewAddressFromPublicKey(key.PubKey(), false)
	require.NoError(t, err)

	dir := t.TempDir()
	t.Setenv(EnvPassword, "")
	_, err = runInput(t, dir, mnemonic+"\n", "--network", "regtest", "keygen", "--restore", "--index", "2")
	assert.ErrorIs(t, err, keystore.ErrEmptyPassword)

	t.Setenv(EnvPassword, "correct horse")
	out, err := runInput(t, dir, mnemonic+"\n", "--network", "regtest", "keygen", "--restore", "--index", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "address:  "+want.AddressString)
	assert.NotContains(t, out, "mnemonic:")

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, "treasury.seed", cfg.TreasurySeed)
	assert.Equal(t, uint32(2), cfg.TreasuryIndex)
	assert.Equal(t, "regtest", cfg.Network)

	out, err = run(t, dir, "address")
	require.NoError(t, err)
	assert.Equal(t, want.AddressString+"\n", out)

	// The seed file is never overwritten.
	_, err = runInput(t, dir, mnemonic+"\n", "keygen", "--restore")
	assert.ErrorIs(t, err, keystore.ErrExists)

	t.Setenv(EnvPassword, "wrong")
	_, err = run(t, dir, "address")
	assert.ErrorIs(t, err, keystore.ErrDecryptionFailed)
}
