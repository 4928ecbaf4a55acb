package cli

import (
	"fmt"
	"os"
	"strings"

	"bomflow/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "bomflow",
	Short: "BOM automation trigger engine",
	Long: `bomflow 在任务和物料变更时执行已配置的 BOM 触发器：
复制模板物料、追加物料、按倍数调整数量、计算成本以及发送通知。`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// BOMFLOW_DATABASE_DRIVER -> database.driver
	viper.SetEnvPrefix("BOMFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// 未出现在配置文件中的键需要显式绑定，Unmarshal 才能看到环境变量
var envKeys = []string{
	"server.host", "server.port",
	"database.driver", "database.dsn", "database.sqlite_path", "database.auto_migrate",
	"database.host", "database.port", "database.user", "database.password", "database.name",
	"log.level", "log.format", "log.output",
	"monitoring.tracing.enabled", "monitoring.tracing.endpoint",
	"engine.transactional_attempts",
	"notifications.websocket.enabled",
}

// loadConfig 读取配置并初始化全局日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func logger() *logrus.Logger {
	return logrus.StandardLogger()
}
