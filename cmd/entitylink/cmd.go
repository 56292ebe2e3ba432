package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getzep/entitylink/config"
	"github.com/getzep/entitylink/internal"
)

var (
	log *logrus.Logger

	cfgFile     string
	showVersion bool
	generateKey bool
)

var cmd = &cobra.Command{
	Use:   "entitylink [base_url] [wiki_version]",
	Short: "entitylink routes text and conversations to entity linking and disambiguation models",
	Long: `entitylink serves an HTTP API for entity linking (EL), entity disambiguation (ED)
and conversational entity linking. The models named on the command line are loaded
once at startup on the inference server and shared by all requests.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error { return run(c, args) },
}

var dumpJSONSchemaCmd = &cobra.Command{
	Use:     "json-schema",
	Short:   "Generates JSON Schema for the configuration file",
	Example: "entitylink json-schema > entitylink_config_schema.json",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.JSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return nil
	},
}

func init() {
	cmd.AddCommand(dumpJSONSchemaCmd)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml)")
	cmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "print version number")

	flags := cmd.Flags()
	flags.BoolVarP(&generateKey, "generate-token", "g", false, "generate a new JWT token")
	flags.String("ed-model", config.DefaultEDModel, "entity disambiguation model")
	flags.StringSlice("ner-model", []string{config.DefaultNERModel}, "NER model(s) to load")
	flags.StringP("bind", "b", config.DefaultHost, "address to bind to")
	flags.IntP("port", "p", config.DefaultPort, "port to listen on")
	flags.String("backend-url", "", "inference server URL")

	bindFlags()
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"models.ed_model":   "ed-model",
	"models.ner_models": "ner-model",
	"server.host":       "bind",
	"server.port":       "port",
	"backend.url":       "backend-url",
}

// bindFlags lets command line flags override config file and ENV values.
// Unset flags fall back to those sources rather than the flag defaults.
// It must be called again after viper.Reset.
func bindFlags() {
	for key, flag := range flagKeys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

// Execute executes the root cobra command.
func Execute() {
	log = internal.GetLogger()

	err := cmd.Execute()

	if err != nil {
		os.Exit(1)
	}
}
