package cmd

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/nagopanel/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create the nagopanel configuration",
	Long:  `Create the nagopanel configuration directory and config file interactively.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	cfg := config.DefaultConfig()

	// Step 1: host transport
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How does the editor extension talk to the panel?").
				Description("stdio: the extension spawns nagopanel. websocket: nagopanel dials the extension.").
				Options(
					huh.NewOption("stdio (spawned by the host)", config.TransportStdio),
					huh.NewOption("websocket (dial the host)", config.TransportWebSocket),
				).
				Value(&cfg.Host.Transport),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: host URL, websocket only
	if cfg.Host.Transport == config.TransportWebSocket {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Host websocket URL").
					Description("For example ws://127.0.0.1:7000/panel").
					Validate(validateHostURL).
					Value(&cfg.Host.URL),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// Step 3: shell address and highlight style
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Browser shell address").
				Description("The webview loads the panel from here.").
				Validate(validateAddr).
				Value(&cfg.Web.Addr),
			huh.NewSelect[string]().
				Title("Code highlight style").
				Options(buildStyleOptions()...).
				Value(&cfg.Render.HighlightStyle),
		),
	).Run()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println("Config written to:", configPath)
	fmt.Println("Start the panel with: nagopanel serve")
	return nil
}

func validateHostURL(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "ws://") && !strings.HasPrefix(s, "wss://") {
		return fmt.Errorf("URL must start with ws:// or wss://")
	}
	return nil
}

func validateAddr(s string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("address must be host:port")
	}
	return nil
}

// buildStyleOptions lists the chroma styles, the configured default first.
func buildStyleOptions() []huh.Option[string] {
	def := config.DefaultConfig().Render.HighlightStyle
	options := []huh.Option[string]{huh.NewOption(def+" (default)", def)}
	for _, name := range styles.Names() {
		if name == def {
			continue
		}
		options = append(options, huh.NewOption(name, name))
	}
	return options
}
