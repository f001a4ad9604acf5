package cmd

import (
	"github.com/spf13/cobra"

	"kgicweb/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动KGIC网站服务器",
	Long:  `启动HTTP服务器，提供内容API、播客上传、播放计数推送和静态站点`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
