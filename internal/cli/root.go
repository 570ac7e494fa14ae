package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	cfgFile string
	dataDir string
	rootCmd *cobra.Command
)

func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "stuplan",
		Short: "Graduation plan conversation engine",
		Long: `stuplan walks students through building a graduation plan.

It keeps the state of each planning conversation, decides which step
comes next, lets students go back and change earlier answers, and
generates the final term-by-term plan.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.stuplan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: $HOME/.stuplan)")

	// Bind flags to viper
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConversationCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDBCmd())

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Warning: error reading .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Warning: could not find home directory:", err)
			return
		}

		// Search for config in ~/.stuplan/
		viper.AddConfigPath(home + "/.stuplan")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("STUPLAN")
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Warning: error reading config:", err)
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stuplan %s\n", version)
		},
	}
}

func Execute() error {
	return rootCmd.Execute()
}
