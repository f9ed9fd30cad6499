package cmd

import (
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/findcloutintern/kimigate/internal/process"
)

var codeCmd = &cobra.Command{
	Use:   "code [args...]",
	Short: "Run an agent client against the gateway",
	Long:  `Start the gateway service if needed and launch the agent client with the gateway as its API endpoint. The client command defaults to "claude" and can be overridden with KIMIGATE_CLIENT.`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runCode,
}

func runCode(cmd *cobra.Command, args []string) error {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	serviceStartedByUs, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	env := os.Environ()

	env = filterEnv(env, "ANTHROPIC_AUTH_TOKEN")
	env = filterEnv(env, "ANTHROPIC_API_KEY")

	if cfg.ProxyAPIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+cfg.ProxyAPIKey)
	} else {
		env = append(env, "ANTHROPIC_AUTH_TOKEN=proxy")
	}

	env = append(env, "ANTHROPIC_BASE_URL=http://"+cfg.Host+":"+strconv.Itoa(cfg.Port))
	env = append(env, "API_TIMEOUT_MS=600000")

	procMgr.IncrementRef()
	defer func() {
		procMgr.DecrementRef()
		// Only stop the service if we started it and nobody else holds it
		if serviceStartedByUs && procMgr.ReadRef() == 0 {
			color.Yellow("No more active sessions, stopping auto-started service...")
			procMgr.Stop()
		}
	}()

	clientName, clientArgs, err := clientCommand()
	if err != nil {
		return err
	}

	clientCmd := exec.Command(clientName, append(clientArgs, args...)...)
	clientCmd.Env = env
	clientCmd.Stdin = os.Stdin
	clientCmd.Stdout = os.Stdout
	clientCmd.Stderr = os.Stderr

	return clientCmd.Run()
}

// clientCommand resolves the client binary, honoring a KIMIGATE_CLIENT
// override that may carry its own arguments.
func clientCommand() (string, []string, error) {
	override := os.Getenv("KIMIGATE_CLIENT")
	if override == "" {
		return "claude", nil, nil
	}

	parts, err := shlex.Split(override)
	if err != nil || len(parts) == 0 {
		color.Yellow("Ignoring unparsable KIMIGATE_CLIENT override: %s", override)

		return "claude", nil, nil
	}

	return parts[0], parts[1:], nil
}

func filterEnv(env []string, key string) []string {
	var filtered []string

	prefix := key + "="
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			filtered = append(filtered, e)
		}
	}

	return filtered
}
