package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/linanwx/nagopanel/config"
	"github.com/linanwx/nagopanel/message"
	"github.com/linanwx/nagopanel/panel"
)

var renderCmd = &cobra.Command{
	Use:   "render [FILE]",
	Short: "Render Markdown the way the panel does and print the HTML",
	Long: `Run a response through the full render pipeline (fence balancing,
Markdown conversion, code post-processing and highlighting) and print the
resulting HTML. Reads FILE, or stdin when FILE is omitted or "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderCSS   bool
	renderStyle string
)

func init() {
	renderCmd.Flags().BoolVar(&renderCSS, "css", false, "Print the highlight stylesheet instead")
	renderCmd.Flags().StringVar(&renderStyle, "style", "", "Chroma style (default from config)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	style := renderStyle
	if style == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		style = cfg.Render.HighlightStyle
	}
	highlighter := panel.NewChromaHighlighter(style)
	out := cmd.OutOrStdout()

	if renderCSS {
		return highlighter.WriteCSS(out)
	}

	src, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	region := panel.NewRegion()
	view := panel.NewView(panel.Options{Target: region, Highlighter: highlighter})
	view.HandleHostMessage(message.Inbound{Type: message.TypeAddResponse, Value: string(src)})

	_, err = fmt.Fprintln(out, region.HTML())
	return err
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}
