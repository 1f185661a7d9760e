package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/lifescore/internal/config"
	"github.com/sw33tLie/lifescore/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _ _  __
	| (_)/ _| ___  ___  ___ ___  _ __ ___
	| | | |_ / _ \/ __|/ __/ _ \| '__/ _ \
	| | |  _|  __/\__ \ (_| (_) | | |  __/
	|_|_|_|  \___||___/\___\___/|_|  \___|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lifescore",
	Short: "A lifetime gaming score built from every platform you play on.",
	Long: LOGO + `lifescore syncs your libraries from Steam, RetroAchievements and PlayStation,
reconciles them against one canonical catalog and turns the result into an
explainable lifetime score.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lifescore.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is $HOME/.config/lifescore/lifescore.sqlite)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Defaults first, so a freshly created config file carries them.
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".lifescore")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LIFESCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".lifescore.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
