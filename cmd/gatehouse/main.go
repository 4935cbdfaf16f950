// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"storj.io/common/cfgstruct"
	"storj.io/common/errs2"
	"storj.io/common/fpath"
	"storj.io/common/process"

	"github.com/StorXNetwork/gatehouse/community"
	"github.com/StorXNetwork/gatehouse/community/communityweb"
	"github.com/StorXNetwork/gatehouse/community/gatepass"
	"github.com/StorXNetwork/gatehouse/gatehouse"
)

var (
	rootCmd = &cobra.Command{
		Use:   "gatehouse",
		Short: "Community gate pass and push notification backend",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the gatehouse api and chores",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue gate passes once and exit",
		RunE:  cmdSweep,
	}
	qrCmd = &cobra.Command{
		Use:   "qr <community-id> <pass-id> <output.png>",
		Short: "Render the scan QR code of a gate pass",
		Args:  cobra.ExactArgs(3),
		RunE:  cmdQR,
	}
	tokenCmd = &cobra.Command{
		Use:   "token <community-id> <user-id>",
		Short: "Sign a session token for a community member",
		Args:  cobra.ExactArgs(2),
		RunE:  cmdToken,
	}

	runCfg   gatehouse.Config
	setupCfg gatehouse.Config
	sweepCfg gatehouse.Config
	qrCfg    struct {
		GatePass gatepass.Config
	}
	tokenCfg struct {
		Web communityweb.Config
	}

	tokenFlags struct {
		name   string
		role   string
		device string
	}

	confDir string
)

func init() {
	defaultConfDir := fpath.ApplicationDir("storx", "gatehouse")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for gatehouse configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(tokenCmd)
	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	process.Bind(sweepCmd, &sweepCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(qrCmd, &qrCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(tokenCmd, &tokenCfg, defaults, cfgstruct.ConfDir(confDir))

	tokenCmd.Flags().StringVar(&tokenFlags.name, "name", "", "display name stored in the token")
	tokenCmd.Flags().StringVar(&tokenFlags.role, "role", "Resident", "community role stored in the token")
	tokenCmd.Flags().StringVar(&tokenFlags.device, "device", "", "operator device id stored in the token")
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	config := runCfg
	// YAML config files may list seed accounts as a structured list rather than the JSON flag.
	if len(config.Seed) == 0 {
		seeds, err := loadSeedFromConfig(confDir)
		if err != nil {
			log.Warn("Failed to load seed accounts from config, continuing without them", zap.Error(err))
		} else {
			config.Seed = seeds
		}
	}

	peer, err := gatehouse.New(ctx, log, config)
	if err != nil {
		log.Error("Failed to create gatehouse peer", zap.Error(err))
		return err
	}
	defer func() {
		err = errs.Combine(err, peer.Close())
	}()

	log.Info("Starting gatehouse",
		zap.String("address", peer.Addr()),
		zap.String("store", config.Store),
		zap.Bool("push_enabled", config.Push.Enabled),
		zap.Bool("expiry_enabled", config.GatePass.Expiry.Enabled),
		zap.Int("seed_accounts", len(config.Seed)),
	)

	runError := peer.Run(ctx)
	return errs2.IgnoreCanceled(runError)
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return errs.New("gatehouse configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func cmdSweep(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	if sweepCfg.Store == gatehouse.StoreMemory {
		return errs.New("sweep needs a persistent store, the memory store has nothing to expire")
	}

	app, err := gatehouse.OpenApp(ctx, sweepCfg)
	if err != nil {
		return err
	}
	db, err := gatehouse.OpenDB(ctx, log.Named("db"), app, sweepCfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errs.Combine(err, db.Close())
	}()

	chore := gatepass.NewExpiryChore(log.Named("gatepass:expiry"), db.GatePasses(), sweepCfg.GatePass.Expiry)

	total := 0
	for {
		expired, err := chore.RunOnce(ctx)
		if err != nil {
			return errs2.IgnoreCanceled(err)
		}
		total += expired
		if expired == 0 || expired < sweepCfg.GatePass.Expiry.BatchSize {
			break
		}
	}

	log.Info("Sweep finished", zap.Int("expired", total))
	return nil
}

func cmdQR(cmd *cobra.Command, args []string) (err error) {
	payload := gatepass.Payload{CommunityID: args[0], PassID: args[1]}
	png, err := gatepass.EncodeQR(payload, qrCfg.GatePass.QRSize)
	if err != nil {
		return err
	}
	return errs.Wrap(os.WriteFile(args[2], png, 0644))
}

func cmdToken(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	auth, err := communityweb.NewAuthService(tokenCfg.Web.Auth)
	if err != nil {
		return err
	}

	token, err := auth.GenerateToken(ctx, community.Session{
		CommunityID: args[0],
		UserID:      args[1],
		Name:        tokenFlags.name,
		Role:        tokenFlags.role,
		DeviceID:    tokenFlags.device,
	})
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write([]byte(token + "\n"))
	return err
}

// loadSeedFromConfig loads seed accounts from the YAML config file.
func loadSeedFromConfig(confDir string) (gatehouse.SeedAccounts, error) {
	configPath := filepath.Join(confDir, "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	var yamlConfig struct {
		Seed []gatehouse.SeedAccount `yaml:"seed"`
	}
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		// the seed key may hold the JSON flag form, which cfgstruct already parsed.
		return nil, nil
	}

	return gatehouse.SeedAccounts(yamlConfig.Seed), nil
}

func main() {
	logger, _, _ := process.NewLogger("gatehouse")
	zap.ReplaceGlobals(logger)

	process.ExecCustomDebug(rootCmd)
}
