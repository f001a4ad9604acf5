package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kgicweb/core/auth"
	"kgicweb/db"
	"kgicweb/logger"
	"kgicweb/model"
	"kgicweb/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "初始化数据库表结构",
	Long:  `创建内容表和管理员表；配置了 ADMIN_EMAIL 和 ADMIN_PASSWORD 时创建或更新管理员账号。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		conn, err := db.ConnectDB(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.InitSchema(ctx, conn); err != nil {
			return err
		}
		gdb, err := db.ConnectGormDB(conn)
		if err != nil {
			return err
		}
		if err := db.AutoMigrateModels(gdb, &model.AdminUser{}); err != nil {
			return err
		}
		fmt.Println("数据库表结构已就绪")

		email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
		if email == "" || cfg.AdminPassword == "" {
			return nil
		}

		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}
		admin := &model.AdminUser{Email: email, PasswordHash: hash, DisplayName: "Admin"}
		if err := repository.NewUserRepository(gdb).UpsertUser(ctx, admin); err != nil {
			return err
		}
		logger.Info("管理员账号已更新", logger.String("email", email))
		fmt.Printf("管理员账号 %s 已更新\n", email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
