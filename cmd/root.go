package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kgicweb/config"
	"kgicweb/logger"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kgic_server",
	Short: "KGIC church website: content API, podcast storage and a terminal listener.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}

		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
			// 听众界面占用终端，日志只写文件
			FileOnly: cmd.Name() == listenCmd.Name(),
		})

		cfg.Watch(func(next *config.Config) {
			logger.SetLevel(logger.LogLevel(next.LogLevel))
			logger.Info("配置已重新加载", logger.String("logLevel", next.LogLevel))
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (yaml/json/toml/env)")
}
