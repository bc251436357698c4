package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/shardwallet-go/config"
	"github.com/bitfsorg/shardwallet-go/keystore"
)

const defaultSeedFile = "treasury.seed"

func newKeygenCmd(a *app) *cobra.Command {
	var (
		words   int
		restore bool
		index   uint32
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the treasury seed and record it in the config file",
		Long: `keygen creates a BIP39 mnemonic (or, with --restore, reads one from stdin),
seals its seed under the password in ` + EnvPassword + ` and points the config
file at it. The treasury key is derived at m/44'/236'/0'/0/<index>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv(EnvPassword)
			if password == "" {
				return fmt.Errorf("%w: set %s", keystore.ErrEmptyPassword, EnvPassword)
			}

			var mnemonic string
			if restore {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read mnemonic: %w", err)
				}
				mnemonic = strings.Join(strings.Fields(line), " ")
			} else {
				var err error
				if mnemonic, err = keystore.NewMnemonic(words); err != nil {
					return err
				}
			}
			seed, err := keystore.SeedFromMnemonic(mnemonic, "")
			if err != nil {
				return err
			}
			key, err := keystore.TreasuryKey(seed, a.mainnet(), index)
			if err != nil {
				return err
			}
			addr, err := script.NewAddressFromPublicKey(key.PubKey(), a.mainnet())
			if err != nil {
				return err
			}

			cfg := a.cfg
			if cfg.TreasurySeed == "" {
				cfg.TreasurySeed = defaultSeedFile
			}
			cfg.TreasuryIndex = index
			if err := keystore.WriteFile(cfg.SeedPath(), seed, password, keystore.DefaultKDF); err != nil {
				return err
			}
			if err := config.SaveConfig(a.configPath, cfg); err != nil {
				return err
			}
			a.cfg = cfg

			out := cmd.OutOrStdout()
			if !restore {
				fmt.Fprintf(out, "mnemonic: %s\n", mnemonic)
				fmt.Fprintln(out, "write the mnemonic down; it is the only backup of the treasury")
			}
			fmt.Fprintf(out, "seed:     %s\n", cfg.SeedPath())
			fmt.Fprintf(out, "key:      %s\n", keystore.TreasuryPath(index))
			fmt.Fprintf(out, "address:  %s\n", addr.AddressString)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&words, "words", 24, "mnemonic length, 12 or 24")
	f.BoolVar(&restore, "restore", false, "read an existing mnemonic from stdin")
	f.Uint32Var(&index, "index", 0, "treasury key index")
	return cmd
}
