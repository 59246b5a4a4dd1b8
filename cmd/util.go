package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/operandhq/lpr/internal/core"
	"github.com/operandhq/lpr/pkg/client"
)

var (
	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")
)

// BeQuietError signals that the error was already reported to the user and
// the root command should just exit non-zero.
type BeQuietError struct{}

func (BeQuietError) Error() string { return "" }

func getClient() (*client.Client, error) {
	// we need the user to provide some server address first
	server := viper.GetString(ServerAddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured, provide via --server or LPR_ADDR")
	}

	var opts []client.Option
	if token := viper.GetString(AdminTokenKey); token != "" {
		opts = append(opts, client.WithAdminToken(token))
	}
	return client.New(server, opts...), nil
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// parseFingerprint turns repeated "key=value" flags into a fingerprint.
func parseFingerprint(attrs []string) (core.DeviceFingerprint, error) {
	if len(attrs) == 0 {
		return core.DeviceFingerprint{}, nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return core.DeviceFingerprint{}, fmt.Errorf("attribute %q is not key=value", a)
		}
		m[k] = v
	}
	return core.DeviceFingerprint{Attributes: m}, nil
}

// parseScope parses "METHOD PATTERN [CONSTRAINT]" into a scope.
func parseScope(s string) (core.Scope, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 3)
	if len(parts) < 2 {
		return core.Scope{}, fmt.Errorf("scope %q must be \"METHOD PATTERN [CONSTRAINT]\"", s)
	}
	scope := core.Scope{
		Method:     strings.ToUpper(parts[0]),
		URLPattern: parts[1],
	}
	if len(parts) == 3 {
		scope.Constraint = parts[2]
	}
	return scope, nil
}
