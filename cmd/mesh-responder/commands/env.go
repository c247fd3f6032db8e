package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const envPrefix = "MESH_RESPONDER_"

// envName maps a flag to its variable, "log-level" to MESH_RESPONDER_LOG_LEVEL.
func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnv fills the flags not given on the command line from
// MESH_RESPONDER_* variables. The environment wins over the env file.
// A missing env file is only an error when it was asked for explicitly.
func applyEnv(cmd *cobra.Command, envFile string) error {
	fileValues := map[string]string{}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file"):
		default:
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
	}

	var errs []error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "env-file" || f.Name == "help" {
			return
		}

		name := envName(f.Name)

		value, ok := os.LookupEnv(name)
		if !ok {
			value, ok = fileValues[name]
		}
		if !ok {
			return
		}

		if err := f.Value.Set(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	})

	return errors.Join(errs...)
}
