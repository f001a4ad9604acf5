package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kgicweb/storage"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDepth     int
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "查看播客存储桶",
	Long:  `列出存储桶中的音频和封面文件，支持前缀过滤、递归显示和按目录统计。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.StorageConfigured() {
			return fmt.Errorf("未配置对象存储 (MINIO_ENDPOINT / MINIO_ACCESS_KEY / MINIO_SECRET_KEY)")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return fmt.Errorf("创建MinIO客户端失败: %w", err)
		}

		objects, stats, err := store.ListObjects(cmd.Context(), minioPrefix, minioRecursive || minioStats)
		if err != nil {
			return err
		}

		if minioStats {
			fmt.Printf("\n对象总数: %d\n总大小: %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			fmt.Println()
			for _, ps := range storage.GroupByPrefix(objects, minioDepth) {
				fmt.Printf("%-30s %6d  %s\n", ps.Prefix, ps.Objects, storage.FormatSize(ps.Size))
			}
			return nil
		}

		for _, o := range objects {
			fmt.Printf("%-60s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format("2006-01-02 15:04"))
		}
		fmt.Printf("\n共 %d 个对象，%s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归列出子目录")
	minioCmd.Flags().IntVar(&minioDepth, "depth", 2, "统计时按前几级目录汇总")

	minioCmd.Example = `  # 列出所有文件
  kgic_server minio -r

  # 只看音频
  kgic_server minio -r -p "public/audios/"

  # 按目录统计
  kgic_server minio -s`
}
