package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"kgicweb/core/audio"
	"kgicweb/core/playback"
	"kgicweb/core/siteapi"
	"kgicweb/logger"
	"kgicweb/tui"
)

var listenSocket string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "终端收听播客",
	Long: `在终端中浏览网站内容并收听播客。音频由 mpv 播放，
切换页面时播放不会中断；离开播客页面后迷你播放器在暂停一分钟后隐藏。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var out playback.Output
		if listenSocket != "" {
			m, err := audio.AttachMPV(listenSocket)
			if err != nil {
				return err
			}
			out = m
		} else {
			out = audio.NewMPVOutput(cfg.MPVPath)
		}

		client := siteapi.NewClient(cfg.APIBaseURL)
		reporter := playback.NewReporter(client)
		coordinator := playback.NewCoordinator(out, playback.NewResolver(client), playback.WithReporter(reporter))
		defer coordinator.Close()

		plays := make(chan siteapi.PlayCountUpdate, 16)
		go func() {
			err := client.SubscribePlays(ctx, func(u siteapi.PlayCountUpdate) {
				select {
				case plays <- u:
				default:
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("[Listener] 播放次数推送断开", logger.ErrorField(err))
			}
		}()

		logger.Info("[Listener] 启动", logger.String("api", cfg.APIBaseURL), logger.String("session", client.Session()))
		err := tui.Run(ctx, tui.Options{
			Catalog:    client,
			Player:     coordinator,
			Reporter:   reporter,
			PlayCounts: plays,
			Visibility: playback.DefaultVisibility(),
		})

		// 等待未完成的播放上报
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer waitCancel()
		if werr := reporter.Wait(waitCtx); werr != nil {
			logger.Warn("[Listener] 仍有播放上报未完成", logger.ErrorField(werr))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&listenSocket, "mpv-socket", "", "连接已运行的 mpv IPC socket，而不是启动新的 mpv")
}
