package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "t"}
	cmd.Flags().String("name", "", "")
	cmd.Flags().Int("count", 0, "")
	cmd.Flags().Bool("enabled", false, "")
	cmd.Flags().Float64("ratio", 0, "")
	cmd.Flags().Duration("wait", 0, "")
	cmd.Flags().StringArray("tags", nil, "")
	return cmd
}

func TestFlagWinsWhenChanged(t *testing.T) {
	viper.Reset()
	viper.Set("app.name", "from-viper")
	cmd := newCmd()
	if err := cmd.Flags().Set("name", "from-flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := FlagOrViperString(cmd, "name", "app.name"); got != "from-flag" {
		t.Fatalf("value mismatch: got %q want %q", got, "from-flag")
	}
}

func TestViperWinsWhenFlagUntouched(t *testing.T) {
	viper.Reset()
	viper.Set("app.name", "from-viper")
	viper.Set("app.count", 7)
	viper.Set("app.enabled", true)
	viper.Set("app.ratio", 0.5)
	viper.Set("app.wait", "3s")
	viper.Set("app.tags", []string{"a", "b"})
	cmd := newCmd()

	if got := FlagOrViperString(cmd, "name", "app.name"); got != "from-viper" {
		t.Fatalf("string mismatch: got %q", got)
	}
	if got := FlagOrViperInt(cmd, "count", "app.count"); got != 7 {
		t.Fatalf("int mismatch: got %d", got)
	}
	if got := FlagOrViperBool(cmd, "enabled", "app.enabled"); !got {
		t.Fatal("bool mismatch: got false")
	}
	if got := FlagOrViperFloat64(cmd, "ratio", "app.ratio"); got != 0.5 {
		t.Fatalf("float mismatch: got %v", got)
	}
	if got := FlagOrViperDuration(cmd, "wait", "app.wait"); got != 3*time.Second {
		t.Fatalf("duration mismatch: got %v", got)
	}
	if got := FlagOrViperStringArray(cmd, "tags", "app.tags"); len(got) != 2 || got[0] != "a" {
		t.Fatalf("array mismatch: got %v", got)
	}
}

func TestNilCommandFallsBackToViper(t *testing.T) {
	viper.Reset()
	viper.Set("app.name", "from-viper")
	if got := FlagOrViperString(nil, "name", "app.name"); got != "from-viper" {
		t.Fatalf("value mismatch: got %q", got)
	}
}
