// @title NBL 训练后端 API
// @version 1.0
// @description 中性浮力训练评分与会话管理服务。

// @host localhost:3001
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"log"
	"os"

	"nbl_training_backend/internal/app"
	"nbl_training_backend/internal/config"
	"nbl_training_backend/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	var configDir string

	root := &cobra.Command{
		Use:   "nbl-training",
		Short: "NBL astronaut training backend",
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "configs", "配置文件目录")

	var migrate bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 与 WebSocket 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir)
			if err != nil {
				return err
			}
			// 启动时强制执行数据库迁移（即使是 release 模式）
			cfg.ForceMigrate = migrate

			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			application.Run()
			return nil
		},
	}
	serveCmd.Flags().BoolVar(&migrate, "migrate", false, "启动时执行数据库迁移")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "只执行数据库迁移，完成后退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir)
			if err != nil {
				return err
			}
			cfg.ForceMigrate = true
			cfg.MigrateOnly = true

			if _, err := app.NewApp(cfg); err != nil {
				return err
			}
			defer logger.Log.Sync()
			log.Println("数据库迁移完成，退出程序")
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
