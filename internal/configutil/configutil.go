// Package configutil resolves settings that can arrive either as a command
// flag or a viper key. A flag the user actually set wins; otherwise the viper
// value (config file or environment) applies.
package configutil

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flagName, viperKey string) string {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetString(flagName); err == nil {
			return v
		}
	}
	return viper.GetString(viperKey)
}

func FlagOrViperStringArray(cmd *cobra.Command, flagName, viperKey string) []string {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetStringArray(flagName); err == nil {
			return v
		}
	}
	return viper.GetStringSlice(viperKey)
}

func FlagOrViperBool(cmd *cobra.Command, flagName, viperKey string) bool {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetBool(flagName); err == nil {
			return v
		}
	}
	return viper.GetBool(viperKey)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, viperKey string) int {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetInt(flagName); err == nil {
			return v
		}
	}
	return viper.GetInt(viperKey)
}

func FlagOrViperFloat64(cmd *cobra.Command, flagName, viperKey string) float64 {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetFloat64(flagName); err == nil {
			return v
		}
	}
	return viper.GetFloat64(viperKey)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, viperKey string) time.Duration {
	if cmd != nil && cmd.Flags().Changed(flagName) {
		if v, err := cmd.Flags().GetDuration(flagName); err == nil {
			return v
		}
	}
	return viper.GetDuration(viperKey)
}
